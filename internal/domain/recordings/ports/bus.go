package ports

import (
	"context"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
)

// Bus is the recording event bus.
type Bus interface {
	Publish(ctx context.Context, topic string, evt model.RecordingEvent) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription delivers events until closed. Close is idempotent and closes C.
type Subscription interface {
	C() <-chan model.RecordingEvent
	Close() error
}

// Notifier forwards status changes to external listeners.
type Notifier interface {
	Notify(ctx context.Context, evt model.RecordingEvent) error
}
