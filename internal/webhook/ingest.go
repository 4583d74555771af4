package webhook

import (
	"context"
	"net/http"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lkwebhook "github.com/livekit/protocol/webhook"
	"github.com/rs/zerolog"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/infra/egress"
	"github.com/ManuGH/meetd/internal/log"
	"github.com/ManuGH/meetd/internal/metrics"
)

// LiveKit egress event names.
const (
	EventEgressStarted = "egress_started"
	EventEgressUpdated = "egress_updated"
	EventEgressEnded   = "egress_ended"
)

// EgressUpdater applies egress status reports.
type EgressUpdater interface {
	HandleEgressUpdate(ctx context.Context, e ports.EgressInfo) (*model.RecordingInfo, error)
}

// Ingestor turns media server events into egress updates. It is shared by the
// HTTP receiver and the Kafka consumer.
type Ingestor struct {
	updater EgressUpdater
	prefix  string
	logger  zerolog.Logger
}

// NewIngestor returns an Ingestor. storagePrefix is the object prefix the
// gateway starts sessions with.
func NewIngestor(updater EgressUpdater, storagePrefix string) *Ingestor {
	return &Ingestor{
		updater: updater,
		prefix:  storagePrefix,
		logger:  log.WithComponent("webhook"),
	}
}

// Ingest applies one event. Events that do not concern egress are ignored.
func (i *Ingestor) Ingest(ctx context.Context, evt *livekit.WebhookEvent) error {
	name := evt.GetEvent()
	switch name {
	case EventEgressStarted, EventEgressUpdated, EventEgressEnded:
	default:
		metrics.IncWebhookEvent(name, "ignored")
		return nil
	}
	if evt.GetEgressInfo() == nil {
		metrics.IncWebhookEvent(name, "ignored")
		i.logger.Warn().Str(log.FieldEvent, name).Msg("egress event without egress info")
		return nil
	}

	update := egress.ToEgressInfo(evt.GetEgressInfo(), i.prefix)
	info, err := i.updater.HandleEgressUpdate(ctx, update)
	if err != nil {
		metrics.IncWebhookEvent(name, "error")
		return err
	}
	metrics.IncWebhookEvent(name, "ok")
	i.logger.Debug().
		Str(log.FieldEvent, name).
		Str(log.FieldRecordingID, info.RecordingID).
		Str(log.FieldStatus, string(info.Status)).
		Msg("egress event applied")
	return nil
}

// LiveKitHandler receives webhooks signed with the LiveKit API credentials.
// Failed updates answer 500 so the media server retries.
func (i *Ingestor) LiveKitHandler(keys auth.KeyProvider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithComponentFromContext(r.Context(), "webhook")

		evt, err := lkwebhook.ReceiveWebhookEvent(r, keys)
		if err != nil {
			metrics.IncWebhookEvent("unknown", "rejected")
			logger.Warn().Err(err).Msg("rejected webhook")
			http.Error(w, "invalid webhook", http.StatusUnauthorized)
			return
		}
		if err := i.Ingest(r.Context(), evt); err != nil {
			logger.Error().Err(err).
				Str(log.FieldEvent, evt.GetEvent()).
				Str(log.FieldEgressID, evt.GetEgressInfo().GetEgressId()).
				Msg("failed to apply egress event")
			http.Error(w, "failed to apply event", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}
