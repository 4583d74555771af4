package coordinator

import (
	"sync"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
)

// startOutcome is how a pending start settled.
type startOutcome struct {
	timedOut bool
	event    model.RecordingEvent
}

// startWaiter resolves exactly once. The first producer wins; later calls to
// resolve are ignored and report false.
type startWaiter struct {
	once    sync.Once
	done    chan struct{}
	outcome startOutcome
}

func newStartWaiter() *startWaiter {
	return &startWaiter{done: make(chan struct{})}
}

func (w *startWaiter) resolve(o startOutcome) bool {
	won := false
	w.once.Do(func() {
		w.outcome = o
		won = true
		close(w.done)
	})
	return won
}

// Done is closed once the waiter has resolved.
func (w *startWaiter) Done() <-chan struct{} {
	return w.done
}

// Outcome must only be read after Done is closed.
func (w *startWaiter) Outcome() startOutcome {
	return w.outcome
}
