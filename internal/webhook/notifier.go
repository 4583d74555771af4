package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/log"
	"github.com/ManuGH/meetd/internal/metrics"
	"github.com/ManuGH/meetd/internal/resilience"
)

const (
	notifyTimeout = 10 * time.Second

	breakerThreshold = 5
	breakerReset     = 30 * time.Second
)

// Notifier POSTs signed recording events to a single subscriber URL.
type Notifier struct {
	url     string
	key     []byte
	client  *http.Client
	breaker *resilience.CircuitBreaker
	now     func() time.Time
	logger  zerolog.Logger
}

type NotifierOption func(*Notifier)

func WithHTTPClient(c *http.Client) NotifierOption {
	return func(n *Notifier) { n.client = c }
}

func WithClock(now func() time.Time) NotifierOption {
	return func(n *Notifier) { n.now = now }
}

func WithBreaker(cb *resilience.CircuitBreaker) NotifierOption {
	return func(n *Notifier) { n.breaker = cb }
}

func NewNotifier(url string, key []byte, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		url:     url,
		key:     key,
		client:  &http.Client{Timeout: notifyTimeout},
		breaker: resilience.NewCircuitBreaker("webhook_notifier", breakerThreshold, breakerReset),
		now:     time.Now,
		logger:  log.WithComponent("notifier"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify delivers one event. Any non-2xx response is an error.
func (n *Notifier) Notify(ctx context.Context, evt model.RecordingEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	err = n.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		SetHeaders(req.Header, n.key, n.now(), body)

		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("subscriber responded %d", resp.StatusCode)
		}
		return nil
	})

	switch {
	case err == nil:
		metrics.IncNotification("ok")
	case errors.Is(err, resilience.ErrCircuitOpen):
		metrics.IncNotification("circuit_open")
	default:
		metrics.IncNotification("error")
	}
	return err
}

// Run forwards every status change from bus until ctx is done. Delivery is
// best-effort: failures are logged and the event is dropped.
func (n *Notifier) Run(ctx context.Context, bus ports.Bus) error {
	sub, err := bus.Subscribe(ctx, model.TopicRecordingStatus)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", model.TopicRecordingStatus, err)
	}
	defer sub.Close()

	n.logger.Info().Str("url", n.url).Msg("forwarding recording events")
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := n.Notify(ctx, evt); err != nil {
				n.logger.Warn().Err(err).
					Str(log.FieldRecordingID, evt.RecordingID).
					Str(log.FieldStatus, string(evt.Status)).
					Msg("failed to deliver notification")
			}
		}
	}
}

var _ ports.Notifier = (*Notifier)(nil)
