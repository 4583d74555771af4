// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/log"
	"github.com/ManuGH/meetd/internal/metrics"
)

const (
	subscriberBuffer = 64
	dropLogEvery     = 100
)

var dropCount atomic.Uint64

// MemoryBus is an in-process pub/sub for single-instance deployments and tests.
// Delivery is at-most-once: a publisher waits for a full subscriber only as long
// as its context allows.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]*memSub
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]*memSub)}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func recordDrop(topic, reason string) {
	metrics.IncBusDropReason(topic, reason)
	count := dropCount.Add(1)
	if count%dropLogEvery == 1 {
		logger := log.WithComponent("bus")
		logger.Warn().
			Str(log.FieldTopic, topic).
			Str("reason", reason).
			Uint64("dropped", count).
			Msg("recording event dropped")
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, evt model.RecordingEvent) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	subs := append([]*memSub(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.deliver(ctx, evt); err != nil {
			reason := publishDropReason(err)
			recordDrop(topic, reason)
			return fmt.Errorf("publish topic %q: %w", topic, err)
		}
	}
	metrics.IncBusPublished("memory")
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string) (ports.Subscription, error) {
	s := &memSub{
		b:     b,
		topic: topic,
		ch:    make(chan model.RecordingEvent, subscriberBuffer),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	return s, nil
}

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan model.RecordingEvent
	done  chan struct{}

	// mu guards ch against close while a delivery is in flight.
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func (s *memSub) deliver(ctx context.Context, evt model.RecordingEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- evt:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *memSub) C() <-chan model.RecordingEvent {
	return s.ch
}

func (s *memSub) Close() error {
	s.once.Do(func() {
		close(s.done)

		s.b.mu.Lock()
		lst := s.b.subs[s.topic]
		out := lst[:0]
		for _, c := range lst {
			if c != s {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			delete(s.b.subs, s.topic)
		} else {
			s.b.subs[s.topic] = out
		}
		s.b.mu.Unlock()

		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return nil
}

var _ ports.Bus = (*MemoryBus)(nil)
