package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/infra/lock"
	"github.com/ManuGH/meetd/internal/scheduler"
)

func TestStartRecording_RoomNotFound(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.c.StartRecording(context.Background(), "ghost")
	require.ErrorIs(t, err, model.ErrRoomNotFound)
	assert.Zero(t, h.gateway.startCalls)
	assert.False(t, h.lockHeld("ghost"))
}

func TestStartRecording_NoPublishers(t *testing.T) {
	h := newHarness(t, Config{})
	h.addRoom("empty", 0)

	_, err := h.c.StartRecording(context.Background(), "empty")
	require.ErrorIs(t, err, model.ErrRoomHasNoParticipants)
	assert.Zero(t, h.gateway.startCalls, "gateway start must not be contacted")
	assert.False(t, h.lockHeld("empty"))
}

func TestStartRecording_MediaRoomMissing(t *testing.T) {
	h := newHarness(t, Config{})
	require.NoError(t, h.rooms.PutRoom(context.Background(), &model.Room{RoomID: "r", RoomName: "R"}))

	_, err := h.c.StartRecording(context.Background(), "r")
	require.ErrorIs(t, err, model.ErrRoomHasNoParticipants)
	assert.Zero(t, h.gateway.startCalls)
}

func TestStartRecording_ActiveOnStartReturnsImmediately(t *testing.T) {
	h := newHarness(t, Config{StartTimeout: time.Hour})
	h.addRoom("r1", 2)
	h.gateway.startStatus = model.StatusActive

	info, err := h.c.StartRecording(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, info.Status)
	assert.Equal(t, "Room r1", info.RoomName)

	id, err := model.ParseRecordingID(info.RecordingID)
	require.NoError(t, err)
	assert.Equal(t, "r1", id.RoomID)
	assert.Equal(t, "EG_1", id.EgressID)

	assert.True(t, h.lockHeld("r1"), "lock stays while the recording is active")
	assert.Zero(t, h.scheduler.pending(), "timeout task must be torn down")
	assert.Contains(t, h.scheduler.cancelled, model.StartTimeoutTaskName("r1"))

	stored, err := h.meta.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, stored.Status)

	archive, err := h.meta.GetRoomArchive(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Room r1", archive.RoomName)
}

func TestStartRecording_ActiveEventWins(t *testing.T) {
	h := newHarness(t, Config{StartTimeout: time.Hour})
	h.addRoom("r1", 1)

	h.gateway.onStart = func(e ports.EgressInfo) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			ctx := context.Background()

			// A stray event for another recording on the same topic is ignored.
			stray := model.RecordingInfo{RecordingID: "r1--EG_999--aaaaaaaaaaaa", RoomID: "r1", Status: model.StatusActive}
			_ = h.bus.Publish(ctx, model.TopicRecordingActive("r1"), model.NewRecordingEvent(stray))

			h.gateway.setStatus(e.EgressID, model.StatusActive)
			active := h.gateway.get(e.EgressID)
			_, err := h.c.HandleEgressUpdate(ctx, active)
			assert.NoError(t, err)
		}()
	}

	info, err := h.c.StartRecording(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, info.Status)
	assert.Equal(t, "EG_1", mustID(t, info.RecordingID).EgressID)
	assert.True(t, h.lockHeld("r1"))
	assert.Zero(t, h.scheduler.pending())
}

func TestStartRecording_Timeout(t *testing.T) {
	cases := []struct {
		name       string
		prepare    func(h *harness)
		lockKept   bool
		stopCalled bool
	}{
		{
			name:     "egress still starting keeps lock",
			prepare:  func(h *harness) {},
			lockKept: true,
		},
		{
			name: "active egress is stopped and lock released",
			prepare: func(h *harness) {
				h.gateway.onStart = func(e ports.EgressInfo) { h.gateway.setStatus(e.EgressID, model.StatusActive) }
			},
			stopCalled: true,
		},
		{
			name: "stop failure releases lock",
			prepare: func(h *harness) {
				h.gateway.onStart = func(e ports.EgressInfo) { h.gateway.setStatus(e.EgressID, model.StatusActive) }
				h.gateway.stopErr = errUnavailable
			},
			stopCalled: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, Config{StartTimeout: time.Second})
			h.addRoom("r1", 1)
			h.scheduler.fireTimeouts = true
			tc.prepare(h)

			_, err := h.c.StartRecording(context.Background(), "r1")
			require.ErrorIs(t, err, model.ErrRecordingStartTimeout)

			assert.Equal(t, tc.lockKept, h.lockHeld("r1"))
			if tc.stopCalled {
				assert.Equal(t, []string{"EG_1"}, h.gateway.stopCalls())
			} else {
				assert.Empty(t, h.gateway.stopCalls())
			}

			docs, err := h.c.ListRecordings(context.Background(), "r1")
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, model.StatusFailed, docs[0].Status)
			assert.Zero(t, h.scheduler.pending())
		})
	}
}

// hookedLocker runs onRelease after each successful release.
type hookedLocker struct {
	*lock.MemoryLocker
	onRelease func()
}

func (l *hookedLocker) Release(ctx context.Context, name string) error {
	if err := l.MemoryLocker.Release(ctx, name); err != nil {
		return err
	}
	l.onRelease()
	return nil
}

func TestStartRecording_TimeoutLeavesNextStartTimerAlone(t *testing.T) {
	h := newHarness(t, Config{StartTimeout: 50 * time.Millisecond})
	h.addRoom("r1", 1)
	h.gateway.onStart = func(e ports.EgressInfo) { h.gateway.setStatus(e.EgressID, model.StatusActive) }

	sched := scheduler.New()
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })
	h.c.scheduler = sched

	// The first release starts the next recording and waits until its timeout
	// task is registered, before the first start call has returned.
	taskName := model.StartTimeoutTaskName("r1")
	next := make(chan error, 1)
	var fired atomic.Bool
	h.c.locker = &hookedLocker{MemoryLocker: h.locker, onRelease: func() {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		go func() {
			_, err := h.c.StartRecording(context.Background(), "r1")
			next <- err
		}()
		require.Eventually(t, func() bool { return sched.Pending(taskName) }, time.Second, time.Millisecond)
	}}

	_, err := h.c.StartRecording(context.Background(), "r1")
	require.ErrorIs(t, err, model.ErrRecordingStartTimeout)

	select {
	case err := <-next:
		require.ErrorIs(t, err, model.ErrRecordingStartTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("second start never timed out")
	}
	assert.False(t, sched.Pending(taskName))
	assert.False(t, h.lockHeld("r1"))
}

func TestStartRecording_ConcurrentStartsOneWins(t *testing.T) {
	h := newHarness(t, Config{StartTimeout: time.Hour})
	h.addRoom("r1", 3)
	h.gateway.startStatus = model.StatusActive

	const n = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.c.StartRecording(context.Background(), "r1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, model.ErrRecordingAlreadyStarted):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, rejected)
	assert.Equal(t, 1, h.gateway.startCalls)
}

func TestStartRecording_GatewayFailureReleasesLock(t *testing.T) {
	h := newHarness(t, Config{})
	h.addRoom("r1", 1)
	h.gateway.startErr = errUnavailable

	_, err := h.c.StartRecording(context.Background(), "r1")
	require.ErrorIs(t, err, model.ErrInternal)
	assert.ErrorIs(t, err, errUnavailable)
	assert.False(t, h.lockHeld("r1"))
	assert.Zero(t, h.scheduler.pending())
}

func TestStartRecording_LockAlreadyHeld(t *testing.T) {
	h := newHarness(t, Config{})
	h.addRoom("r1", 1)
	_, err := h.locker.Acquire(context.Background(), model.ActiveLockKey("r1"), time.Hour)
	require.NoError(t, err)

	_, err = h.c.StartRecording(context.Background(), "r1")
	require.ErrorIs(t, err, model.ErrRecordingAlreadyStarted)
	assert.Zero(t, h.gateway.startCalls)
	assert.True(t, h.lockHeld("r1"), "another start's lock must not be touched")
}

func TestStartRecording_CallerCancellation(t *testing.T) {
	h := newHarness(t, Config{StartTimeout: time.Hour})
	h.addRoom("r1", 1)

	ctx, cancel := context.WithCancel(context.Background())
	h.gateway.onStart = func(ports.EgressInfo) { cancel() }

	_, err := h.c.StartRecording(ctx, "r1")
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, h.lockHeld("r1"), "egress is still starting, lock is kept for the sweeps")
	assert.Zero(t, h.scheduler.pending())
}

func TestStartWaiter_ResolvesOnce(t *testing.T) {
	w := newStartWaiter()
	assert.True(t, w.resolve(startOutcome{timedOut: true}))
	assert.False(t, w.resolve(startOutcome{event: model.RecordingEvent{RoomID: "late"}}))

	select {
	case <-w.Done():
	default:
		t.Fatal("waiter not resolved")
	}
	assert.True(t, w.Outcome().timedOut)
}

func mustID(t *testing.T, s string) model.RecordingID {
	t.Helper()
	id, err := model.ParseRecordingID(s)
	require.NoError(t, err)
	return id
}
