package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
)

func (h *harness) holdLock(roomID string) {
	h.t.Helper()
	l, err := h.locker.Acquire(context.Background(), model.ActiveLockKey(roomID), time.Hour)
	require.NoError(h.t, err)
	require.NotNil(h.t, l)
}

func TestSweepOrphanLocks(t *testing.T) {
	h := newHarness(t, Config{LockGracePeriod: 2 * time.Minute})
	ctx := context.Background()

	h.holdLock("idle")
	h.holdLock("recording")
	h.holdLock("broken")
	addSession(h, "recording", "EG_a", "aaaaaaaaaaaa", model.StatusStarting)
	h.gateway.listErr["broken"] = errUnavailable

	h.advance(3 * time.Minute)
	h.holdLock("young")

	outcomes := h.c.SweepOrphanLocks(ctx)
	assert.Equal(t, map[string]string{
		model.ActiveLockKey("idle"):      OutcomeReleased,
		model.ActiveLockKey("recording"): OutcomeRetained,
		model.ActiveLockKey("broken"):    OutcomeError,
		model.ActiveLockKey("young"):     OutcomeYoung,
	}, outcomes)

	assert.False(t, h.lockHeld("idle"))
	assert.True(t, h.lockHeld("recording"))
	assert.True(t, h.lockHeld("broken"))
	assert.True(t, h.lockHeld("young"))
}

func TestSweepOrphanLocks_GraceBoundary(t *testing.T) {
	h := newHarness(t, Config{LockGracePeriod: 2 * time.Minute})
	h.holdLock("r1")

	h.advance(2*time.Minute - time.Millisecond)
	assert.Equal(t, OutcomeYoung, h.c.SweepOrphanLocks(context.Background())[model.ActiveLockKey("r1")])

	h.advance(time.Millisecond)
	assert.Equal(t, OutcomeReleased, h.c.SweepOrphanLocks(context.Background())[model.ActiveLockKey("r1")])
}

func TestSweepOrphanLocks_IgnoresRoomExistence(t *testing.T) {
	h := newHarness(t, Config{})
	h.addRoom("r1", 1)
	h.holdLock("r1")
	h.advance(10 * time.Minute)

	out := h.c.SweepOrphanLocks(context.Background())
	assert.Equal(t, OutcomeReleased, out[model.ActiveLockKey("r1")], "a live room without egress still releases")
}

func TestSweepStaleRecordings(t *testing.T) {
	h := newHarness(t, Config{StaleThreshold: 5 * time.Minute, StaleBatchSize: 2})
	ctx := context.Background()

	stale := addSession(h, "r1", "EG_stale", "aaaaaaaaaaaa", model.StatusActive)
	h.storeRecording("r1", "EG_stale", "aaaaaaaaaaaa", model.StatusActive)
	addSession(h, "r2", "EG_aborted", "bbbbbbbbbbbb", model.StatusEnding)
	h.storeRecording("r2", "EG_aborted", "bbbbbbbbbbbb", model.StatusAborted)
	unknown := addSession(h, "r3", "EG_nodoc", "cccccccccccc", model.StatusStarting)
	h.gateway.addEgress(ports.EgressInfo{EgressID: "EG_nots", RoomID: "r4", Status: model.StatusActive, FilePath: model.RecordingFilePath("r4", "dddddddddddd")})
	h.gateway.addEgress(ports.EgressInfo{EgressID: "EG_nopath", RoomID: "r5", Status: model.StatusActive, UpdatedAt: h.now})
	h.gateway.addEgress(ports.EgressInfo{EgressID: "EG_done", RoomID: "r6", Status: model.StatusComplete, UpdatedAt: h.now})

	h.advance(10 * time.Minute)
	fresh := ports.EgressInfo{EgressID: "EG_fresh", RoomID: "r7", Status: model.StatusActive, FilePath: model.RecordingFilePath("r7", "eeeeeeeeeeee"), UpdatedAt: h.now}
	h.gateway.addEgress(fresh)
	addSession(h, "r8", "EG_justaborted", "ffffffffffff", model.StatusEnding)
	h.storeRecording("r8", "EG_justaborted", "ffffffffffff", model.StatusAborted)

	outcomes := h.c.SweepStaleRecordings(ctx)
	assert.Equal(t, map[string]string{
		"EG_stale":       OutcomeAborted,
		"EG_aborted":     OutcomeRestop,
		"EG_nodoc":       OutcomeAborted,
		"EG_nots":        OutcomeSkipped,
		"EG_nopath":      OutcomeError,
		"EG_fresh":       OutcomeFresh,
		"EG_justaborted": OutcomeSkipped,
	}, outcomes)

	assert.ElementsMatch(t, []string{"EG_stale", "EG_aborted", "EG_nodoc"}, h.gateway.stopCalls())

	for _, id := range []string{stale, unknown} {
		info, err := h.c.GetRecording(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusAborted, info.Status, id)
		assert.Equal(t, "no status update for 10m0s", info.Details)
		assert.Equal(t, h.now.UnixMilli(), info.EndDate)
	}
}

func TestSweepStaleRecordings_StopFailureIsolated(t *testing.T) {
	h := newHarness(t, Config{StaleBatchSize: 1})
	a := addSession(h, "r1", "EG_a", "aaaaaaaaaaaa", model.StatusActive)
	addSession(h, "r2", "EG_b", "bbbbbbbbbbbb", model.StatusActive)
	h.gateway.stopErr = errUnavailable
	h.advance(time.Hour)

	outcomes := h.c.SweepStaleRecordings(context.Background())
	assert.Equal(t, map[string]string{"EG_a": OutcomeError, "EG_b": OutcomeError}, outcomes)

	info, err := h.c.GetRecording(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAborted, info.Status, "abort is recorded before the stop attempt")
}

func TestSweepStaleRecordings_MetadataReadFailure(t *testing.T) {
	h := newHarness(t, Config{})
	bad := addSession(h, "r1", "EG_a", "aaaaaaaaaaaa", model.StatusActive)
	addSession(h, "r2", "EG_b", "bbbbbbbbbbbb", model.StatusActive)
	h.meta.failGet[bad] = errors.New("decode failure")
	h.advance(time.Hour)

	outcomes := h.c.SweepStaleRecordings(context.Background())
	assert.Equal(t, OutcomeError, outcomes["EG_a"])
	assert.Equal(t, OutcomeAborted, outcomes["EG_b"])
}

func TestSweepStaleRecordings_ListFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.gateway.listErr[""] = errUnavailable
	assert.Nil(t, h.c.SweepStaleRecordings(context.Background()))
}

func TestRegisterSweeps(t *testing.T) {
	h := newHarness(t, Config{OrphanLockSchedule: "@every 1m"})
	require.NoError(t, h.c.RegisterSweeps())

	orphan := h.scheduler.tasks[TaskOrphanLockGC]
	assert.Equal(t, ports.TaskCron, orphan.Type)
	assert.Equal(t, "@every 1m", orphan.Schedule)
	assert.Equal(t, DefaultConfig().StaleSchedule, h.scheduler.tasks[TaskStaleGC].Schedule)

	h.holdLock("r1")
	h.advance(10 * time.Minute)
	orphan.Callback(context.Background())
	assert.False(t, h.lockHeld("r1"))
}

func TestSweepStaleRecordings_RetriesStopAfterFailure(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	id := addSession(h, "r1", "EG_a", "aaaaaaaaaaaa", model.StatusActive)
	h.advance(time.Hour)

	h.gateway.stopErr = errUnavailable
	assert.Equal(t, OutcomeError, h.c.SweepStaleRecordings(ctx)["EG_a"])
	info, err := h.c.GetRecording(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.StatusAborted, info.Status)
	endDate := info.EndDate

	h.gateway.stopErr = nil
	h.advance(15 * time.Minute)
	assert.Equal(t, OutcomeRestop, h.c.SweepStaleRecordings(ctx)["EG_a"])
	assert.Equal(t, []string{"EG_a", "EG_a"}, h.gateway.stopCalls())
	assert.Equal(t, model.StatusEnding, h.gateway.get("EG_a").Status)

	info, err = h.c.GetRecording(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, endDate, info.EndDate, "aborted document is not rewritten")
}
