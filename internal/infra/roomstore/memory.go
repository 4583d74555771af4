package roomstore

import (
	"context"
	"sort"
	"sync"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
)

// MemoryStore is a map-backed ports.RoomStore.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]model.Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]model.Room)}
}

func (m *MemoryStore) GetRoom(_ context.Context, roomID string) (*model.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) PutRoom(_ context.Context, room *model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.rooms[room.RoomID]; ok {
		r := *room
		r.CreatedAt = prev.CreatedAt
		m.rooms[room.RoomID] = r
		return nil
	}
	m.rooms[room.RoomID] = *room
	return nil
}

func (m *MemoryStore) DeleteRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return ports.ErrNotFound
	}
	delete(m.rooms, roomID)
	return nil
}

func (m *MemoryStore) ListRooms(_ context.Context) ([]model.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].RoomID < out[j].RoomID
	})
	return out, nil
}

var _ ports.RoomStore = (*MemoryStore)(nil)
