package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/infra/bus"
	"github.com/ManuGH/meetd/internal/infra/lock"
	"github.com/ManuGH/meetd/internal/infra/roomstore"
	"github.com/ManuGH/meetd/internal/infra/storage"
)

var errUnavailable = errors.New("unavailable")

type fakeGateway struct {
	mu          sync.Mutex
	now         func() time.Time
	rooms       map[string]ports.LiveRoom
	egress      map[string]*ports.EgressInfo
	order       []string
	seq         int
	startStatus model.RecordingStatus
	startErr    error
	stopErr     error
	listErr     map[string]error // by room id, "" for unfiltered
	onStart     func(e ports.EgressInfo)
	startCalls  int
	listCalls   int
	stopped     []string
}

func newFakeGateway(now func() time.Time) *fakeGateway {
	return &fakeGateway{
		now:         now,
		rooms:       make(map[string]ports.LiveRoom),
		egress:      make(map[string]*ports.EgressInfo),
		startStatus: model.StatusStarting,
		listErr:     make(map[string]error),
	}
}

func (g *fakeGateway) setLive(roomID string, publishers int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms[roomID] = ports.LiveRoom{RoomID: roomID, NumParticipants: publishers, NumPublishers: publishers}
}

// addEgress registers a session that was started outside the coordinator.
func (g *fakeGateway) addEgress(e ports.EgressInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := e
	g.egress[e.EgressID] = &cp
	g.order = append(g.order, e.EgressID)
}

func (g *fakeGateway) setStatus(egressID string, s model.RecordingStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.egress[egressID].Status = s
}

func (g *fakeGateway) get(egressID string) ports.EgressInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return *g.egress[egressID]
}

func (g *fakeGateway) stopCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.stopped...)
}

func (g *fakeGateway) StartRoomComposite(_ context.Context, roomID, filePath string, opts ports.StartOptions) (*ports.EgressInfo, error) {
	g.mu.Lock()
	g.startCalls++
	if g.startErr != nil {
		g.mu.Unlock()
		return nil, g.startErr
	}
	g.seq++
	now := g.now()
	e := ports.EgressInfo{
		EgressID:  fmt.Sprintf("EG_%d", g.seq),
		RoomID:    roomID,
		Status:    g.startStatus,
		Layout:    opts.Layout,
		Encoding:  opts.Encoding,
		FilePath:  filePath,
		StartedAt: now,
		UpdatedAt: now,
	}
	g.egress[e.EgressID] = &e
	g.order = append(g.order, e.EgressID)
	hook := g.onStart
	out := e
	g.mu.Unlock()

	if hook != nil {
		hook(out)
	}
	return &out, nil
}

func (g *fakeGateway) StopEgress(_ context.Context, egressID string) (*ports.EgressInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = append(g.stopped, egressID)
	if g.stopErr != nil {
		return nil, g.stopErr
	}
	e, ok := g.egress[egressID]
	if !ok {
		return nil, errors.New("egress not found")
	}
	e.Status = model.StatusEnding
	e.UpdatedAt = g.now()
	out := *e
	return &out, nil
}

func (g *fakeGateway) ListEgress(_ context.Context, f ports.EgressFilter) ([]ports.EgressInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if err := g.listErr[f.RoomID]; err != nil {
		return nil, err
	}
	var out []ports.EgressInfo
	for _, id := range g.order {
		e := g.egress[id]
		if f.RoomID != "" && e.RoomID != f.RoomID {
			continue
		}
		if f.EgressID != "" && e.EgressID != f.EgressID {
			continue
		}
		if f.ActiveOnly && !e.Status.IsInProgress() {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (g *fakeGateway) RoomExists(_ context.Context, roomID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.rooms[roomID]
	return ok, nil
}

func (g *fakeGateway) GetRoom(_ context.Context, roomID string) (*ports.LiveRoom, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return nil, ports.ErrRoomNotFound
	}
	return &r, nil
}

// fakeScheduler records tasks. With fireTimeouts set, timeout tasks fire as soon
// as they are registered.
type fakeScheduler struct {
	mu           sync.Mutex
	tasks        map[string]ports.Task
	registered   []string
	cancelled    []string
	fireTimeouts bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: make(map[string]ports.Task)}
}

func (s *fakeScheduler) RegisterTask(t ports.Task) error {
	s.mu.Lock()
	s.tasks[t.Name] = t
	s.registered = append(s.registered, t.Name)
	fire := s.fireTimeouts && t.Type == ports.TaskTimeout
	s.mu.Unlock()

	if fire {
		t.Callback(context.Background())
	}
	return nil
}

func (s *fakeScheduler) CancelTask(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, name)
	_, ok := s.tasks[name]
	delete(s.tasks, name)
	return ok
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Type == ports.TaskTimeout {
			n++
		}
	}
	return n
}

// flakyBlobs fails DeleteMany for selected keys.
type flakyBlobs struct {
	*storage.MemoryBlobStore
	failKeys map[string]error
	batches  int
}

func (b *flakyBlobs) DeleteMany(ctx context.Context, keys []string) (map[string]error, error) {
	b.batches++
	failures := make(map[string]error)
	var ok []string
	for _, k := range keys {
		if err, bad := b.failKeys[k]; bad {
			failures[k] = err
			continue
		}
		ok = append(ok, k)
	}
	if _, err := b.MemoryBlobStore.DeleteMany(ctx, ok); err != nil {
		return nil, err
	}
	return failures, nil
}

// flakyMeta fails Get for selected recordings.
type flakyMeta struct {
	*storage.MetadataStore
	failGet map[string]error
}

func (m *flakyMeta) Get(ctx context.Context, id model.RecordingID) (*model.RecordingInfo, error) {
	if err, bad := m.failGet[id.String()]; bad {
		return nil, err
	}
	return m.MetadataStore.Get(ctx, id)
}

type harness struct {
	t         *testing.T
	c         *Coordinator
	now       time.Time
	gateway   *fakeGateway
	scheduler *fakeScheduler
	locker    *lock.MemoryLocker
	bus       *bus.MemoryBus
	blobs     *flakyBlobs
	meta      *flakyMeta
	rooms     *roomstore.MemoryStore
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		scheduler: newFakeScheduler(),
		bus:       bus.NewMemoryBus(),
		rooms:     roomstore.NewMemoryStore(),
	}
	clock := func() time.Time { return h.now }
	h.gateway = newFakeGateway(clock)
	h.locker = lock.NewMemoryLocker("test").WithClock(clock)
	h.blobs = &flakyBlobs{MemoryBlobStore: storage.NewMemoryBlobStore(), failKeys: map[string]error{}}
	h.meta = &flakyMeta{MetadataStore: storage.NewMetadataStore(h.blobs, "recordings/"), failGet: map[string]error{}}

	c, err := New(Deps{
		Locker:    h.locker,
		Gateway:   h.gateway,
		Metadata:  h.meta,
		Blobs:     h.blobs,
		Rooms:     h.rooms,
		Bus:       h.bus,
		Scheduler: h.scheduler,
	}, cfg, WithClock(clock))
	require.NoError(t, err)
	h.c = c
	return h
}

func (h *harness) addRoom(roomID string, publishers int) {
	h.t.Helper()
	require.NoError(h.t, h.rooms.PutRoom(context.Background(), &model.Room{RoomID: roomID, RoomName: "Room " + roomID}))
	h.gateway.setLive(roomID, publishers)
}

func (h *harness) lockHeld(roomID string) bool {
	h.t.Helper()
	ok, err := h.locker.Exists(context.Background(), model.ActiveLockKey(roomID))
	require.NoError(h.t, err)
	return ok
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

// storeRecording writes a document and its media object directly.
func (h *harness) storeRecording(roomID, egressID, uid string, status model.RecordingStatus) model.RecordingID {
	h.t.Helper()
	ctx := context.Background()
	id := model.NewRecordingID(roomID, egressID, uid)
	filename := model.RecordingFilePath(roomID, uid)
	require.NoError(h.t, h.meta.Put(ctx, &model.RecordingInfo{
		RecordingID: id.String(),
		RoomID:      roomID,
		RoomName:    "Room " + roomID,
		Status:      status,
		Filename:    filename,
	}))
	require.NoError(h.t, h.blobs.Put(ctx, h.meta.MediaKey(filename), []byte("mp4"), "video/mp4"))
	require.NoError(h.t, h.meta.PutRoomArchive(ctx, model.RoomArchive{RoomID: roomID, RoomName: "Room " + roomID}))
	return id
}

func (h *harness) exists(key string) bool {
	h.t.Helper()
	_, err := h.blobs.Get(context.Background(), key)
	if errors.Is(err, ports.ErrNotFound) {
		return false
	}
	require.NoError(h.t, err)
	return true
}
