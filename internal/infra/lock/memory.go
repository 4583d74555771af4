package lock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
)

// MemoryLocker is a process-local ports.Locker for single-instance deployments and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]ports.Lock
	owner string
	now   func() time.Time
}

func NewMemoryLocker(owner string) *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]ports.Lock), owner: owner, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (l *MemoryLocker) WithClock(now func() time.Time) *MemoryLocker {
	l.now = now
	return l
}

// live must be called with l.mu held.
func (l *MemoryLocker) live(name string) (ports.Lock, bool) {
	lk, ok := l.locks[name]
	if !ok {
		return ports.Lock{}, false
	}
	if !lk.ExpiresAt.IsZero() && !l.now().Before(lk.ExpiresAt) {
		delete(l.locks, name)
		return ports.Lock{}, false
	}
	return lk, true
}

func (l *MemoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (*ports.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.live(name); held {
		return nil, nil
	}
	now := l.now()
	lk := ports.Lock{Name: name, Owner: l.owner, CreatedAt: now}
	if ttl > 0 {
		lk.ExpiresAt = now.Add(ttl)
	}
	l.locks[name] = lk
	return &lk, nil
}

func (l *MemoryLocker) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, name)
	return nil
}

func (l *MemoryLocker) Exists(_ context.Context, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.live(name)
	return ok, nil
}

func (l *MemoryLocker) CreatedAt(_ context.Context, name string) (time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.live(name)
	return lk.CreatedAt, ok, nil
}

func (l *MemoryLocker) ListByPrefix(_ context.Context, prefix string) ([]ports.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ports.Lock
	for name := range l.locks {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if lk, ok := l.live(name); ok {
			out = append(out, lk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var _ ports.Locker = (*MemoryLocker)(nil)
