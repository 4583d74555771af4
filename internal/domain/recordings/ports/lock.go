package ports

import (
	"context"
	"time"
)

// Lock is a named, TTL-bounded mutual-exclusion lease.
type Lock struct {
	Name      string
	Owner     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Locker is the distributed lock provider.
type Locker interface {
	// Acquire returns a nil lock (and nil error) when name is already held.
	Acquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error)
	// Release removes the lease regardless of owner. Releasing a missing lock is not an error.
	Release(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	// CreatedAt returns ok=false when the lock does not exist.
	CreatedAt(ctx context.Context, name string) (time.Time, bool, error)
	ListByPrefix(ctx context.Context, prefix string) ([]Lock, error)
}
