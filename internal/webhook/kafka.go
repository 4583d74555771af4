package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/ManuGH/meetd/internal/log"
)

const defaultRetryDelay = time.Second

// KafkaConfig selects the topic carrying media server events.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer feeds protojson-encoded webhook events from a topic into an
// Ingestor. Offsets are committed after each message is handled, including
// messages that fail to decode or apply.
type KafkaConsumer struct {
	reader     messageReader
	ingest     *Ingestor
	retryDelay time.Duration
	logger     zerolog.Logger
}

func NewKafkaConsumer(cfg KafkaConfig, ingest *Ingestor) *KafkaConsumer {
	return newKafkaConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	}), ingest)
}

func newKafkaConsumer(r messageReader, ingest *Ingestor) *KafkaConsumer {
	return &KafkaConsumer{
		reader:     r,
		ingest:     ingest,
		retryDelay: defaultRetryDelay,
		logger:     log.WithComponent("kafka"),
	}
}

// Run consumes until ctx is done and then closes the reader.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to close kafka reader")
		}
	}()
	c.logger.Info().Msg("kafka consumer started")

	decode := protojson.UnmarshalOptions{DiscardUnknown: true}
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info().Msg("kafka consumer stopped")
				return nil
			}
			c.logger.Warn().Err(err).Msg("failed to fetch message")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		logger := c.logger.With().
			Str(log.FieldTopic, msg.Topic).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Logger()

		var evt livekit.WebhookEvent
		if err := decode.Unmarshal(msg.Value, &evt); err != nil {
			logger.Warn().Err(err).Msg("skipping undecodable event")
		} else if err := c.ingest.Ingest(ctx, &evt); err != nil {
			logger.Error().Err(err).Str(log.FieldEvent, evt.GetEvent()).Msg("failed to apply egress event")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("failed to commit offset")
		}
	}
}
