// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
)

const scanCount = 100

// lockValue is stored as the Redis string value of a held lock.
type lockValue struct {
	Owner     string `json:"owner"`
	CreatedAt int64  `json:"createdAt"` // epoch ms
}

// RedisLocker implements ports.Locker with SET NX PX. The TTL is a crash ceiling;
// normal release is explicit.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	owner  string
	now    func() time.Time
}

// NewRedisLocker stores locks under keyPrefix+name. owner identifies this instance.
func NewRedisLocker(client redis.UniversalClient, keyPrefix, owner string) *RedisLocker {
	return &RedisLocker{client: client, prefix: keyPrefix, owner: owner, now: time.Now}
}

func (l *RedisLocker) key(name string) string {
	return l.prefix + name
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (*ports.Lock, error) {
	now := l.now()
	payload, err := json.Marshal(lockValue{Owner: l.owner, CreatedAt: now.UnixMilli()})
	if err != nil {
		return nil, fmt.Errorf("encode lock %q: %w", name, err)
	}
	ok, err := l.client.SetNX(ctx, l.key(name), payload, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %q: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	return &ports.Lock{
		Name:      name,
		Owner:     l.owner,
		CreatedAt: time.UnixMilli(now.UnixMilli()),
		ExpiresAt: now.Add(ttl),
	}, nil
}

func (l *RedisLocker) Release(ctx context.Context, name string) error {
	if err := l.client.Del(ctx, l.key(name)).Err(); err != nil {
		return fmt.Errorf("release lock %q: %w", name, err)
	}
	return nil
}

func (l *RedisLocker) Exists(ctx context.Context, name string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(name)).Result()
	if err != nil {
		return false, fmt.Errorf("check lock %q: %w", name, err)
	}
	return n > 0, nil
}

func (l *RedisLocker) CreatedAt(ctx context.Context, name string) (time.Time, bool, error) {
	v, ok, err := l.get(ctx, l.key(name))
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	return time.UnixMilli(v.CreatedAt), true, nil
}

func (l *RedisLocker) get(ctx context.Context, key string) (lockValue, bool, error) {
	raw, err := l.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return lockValue{}, false, nil
	}
	if err != nil {
		return lockValue{}, false, fmt.Errorf("read lock %q: %w", key, err)
	}
	var v lockValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return lockValue{}, false, fmt.Errorf("decode lock %q: %w", key, err)
	}
	return v, true, nil
}

// ListByPrefix scans for locks whose name starts with prefix. Locks that expire
// mid-scan are omitted.
func (l *RedisLocker) ListByPrefix(ctx context.Context, prefix string) ([]ports.Lock, error) {
	var out []ports.Lock
	iter := l.client.Scan(ctx, 0, l.key(prefix)+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		v, ok, err := l.get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		lk := ports.Lock{
			Name:      strings.TrimPrefix(key, l.prefix),
			Owner:     v.Owner,
			CreatedAt: time.UnixMilli(v.CreatedAt),
		}
		if ttl, err := l.client.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
			lk.ExpiresAt = l.now().Add(ttl)
		}
		out = append(out, lk)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan locks %q: %w", prefix, err)
	}
	return out, nil
}

var _ ports.Locker = (*RedisLocker)(nil)
