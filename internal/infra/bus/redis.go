package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/log"
	"github.com/ManuGH/meetd/internal/metrics"
)

// RedisBus fans recording events out across instances using Redis pub/sub.
// Topics are used verbatim as channel names under an optional prefix.
type RedisBus struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBus wraps an existing client. prefix may be empty.
func NewRedisBus(client redis.UniversalClient, prefix string) *RedisBus {
	return &RedisBus{client: client, prefix: prefix}
}

func (b *RedisBus) channel(topic string) string {
	return b.prefix + topic
}

func (b *RedisBus) Publish(ctx context.Context, topic string, evt model.RecordingEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event for %q: %w", topic, err)
	}
	if err := b.client.Publish(ctx, b.channel(topic), payload).Err(); err != nil {
		recordDrop(topic, "redis_error")
		return fmt.Errorf("publish topic %q: %w", topic, err)
	}
	metrics.IncBusPublished("redis")
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so events
// published after it returns are not missed.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (ports.Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel(topic))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe topic %q: %w", topic, err)
	}

	s := &redisSub{
		ps:       ps,
		topic:    topic,
		ch:       make(chan model.RecordingEvent, subscriberBuffer),
		finished: make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

type redisSub struct {
	ps       *redis.PubSub
	topic    string
	ch       chan model.RecordingEvent
	finished chan struct{}
	once     sync.Once
}

func (s *redisSub) pump() {
	defer close(s.finished)
	defer close(s.ch)

	logger := log.WithComponent("bus")
	for msg := range s.ps.Channel() {
		var evt model.RecordingEvent
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			logger.Warn().Err(err).Str(log.FieldTopic, s.topic).Msg("discarding undecodable recording event")
			recordDrop(s.topic, "decode")
			continue
		}
		select {
		case s.ch <- evt:
		default:
			recordDrop(s.topic, "buffer_full")
		}
	}
}

func (s *redisSub) C() <-chan model.RecordingEvent {
	return s.ch
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ps.Close()
		<-s.finished
	})
	return err
}

var _ ports.Bus = (*RedisBus)(nil)
