// Package scheduler runs named cron and one-shot timeout tasks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/log"
	"github.com/ManuGH/meetd/internal/metrics"
)

var (
	ErrStopped     = errors.New("scheduler stopped")
	ErrInvalidTask = errors.New("invalid task")
)

// Timer is the handle of a pending one-shot callback.
type Timer interface {
	Stop() bool
}

// Clock schedules one-shot callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type entry struct {
	task   ports.Task
	cronID cron.EntryID
	timer  Timer
	gen    uint64
}

// Scheduler implements ports.Scheduler. Registering a task under an existing
// name replaces it; a cancelled or replaced timeout never fires.
type Scheduler struct {
	cron   *cron.Cron
	clock  Clock
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	tasks   map[string]*entry
	gen     uint64
	stopped bool
	running sync.WaitGroup
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func New(opts ...Option) *Scheduler {
	logger := log.WithComponent("scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		clock:  realClock{},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*entry),
	}
	cl := cronLogger{logger: logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins firing cron tasks. Timeout tasks fire regardless.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Run starts the scheduler and blocks until ctx is done, then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

// Stop cancels every pending task and waits for running callbacks.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for name, e := range s.tasks {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.tasks, name)
	}
	metrics.SetSchedulerPendingTasks(0)
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) RegisterTask(task ports.Task) error {
	if task.Name == "" || task.Callback == nil {
		return fmt.Errorf("%w: name and callback are required", ErrInvalidTask)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}

	s.removeLocked(task.Name)

	s.gen++
	e := &entry{task: task, gen: s.gen}
	switch task.Type {
	case ports.TaskCron:
		id, err := s.cron.AddFunc(task.Schedule, func() { s.runCron(e) })
		if err != nil {
			return fmt.Errorf("%w: schedule %q: %v", ErrInvalidTask, task.Schedule, err)
		}
		e.cronID = id
	case ports.TaskTimeout:
		if task.Delay <= 0 {
			return fmt.Errorf("%w: timeout task %q needs a positive delay", ErrInvalidTask, task.Name)
		}
		name, gen := task.Name, e.gen
		e.timer = s.clock.AfterFunc(task.Delay, func() { s.fireTimeout(name, gen) })
	default:
		return fmt.Errorf("%w: unknown task type %d", ErrInvalidTask, task.Type)
	}

	s.tasks[task.Name] = e
	metrics.SetSchedulerPendingTasks(len(s.tasks))
	s.logger.Debug().
		Str(log.FieldTask, task.Name).
		Str("type", task.Type.String()).
		Msg("task registered")
	return nil
}

func (s *Scheduler) CancelTask(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.removeLocked(name)
	metrics.SetSchedulerPendingTasks(len(s.tasks))
	return ok
}

// removeLocked must be called with s.mu held.
func (s *Scheduler) removeLocked(name string) bool {
	e, ok := s.tasks[name]
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.task.Type == ports.TaskCron {
		s.cron.Remove(e.cronID)
	}
	delete(s.tasks, name)
	return true
}

func (s *Scheduler) fireTimeout(name string, gen uint64) {
	s.mu.Lock()
	e, ok := s.tasks[name]
	if !ok || e.gen != gen || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, name)
	metrics.SetSchedulerPendingTasks(len(s.tasks))
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()
	s.invoke(e.task)
}

func (s *Scheduler) runCron(e *entry) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()
	s.invoke(e.task)
}

func (s *Scheduler) invoke(task ports.Task) {
	kind := task.Type.String()
	defer func() {
		if r := recover(); r != nil {
			metrics.IncSchedulerTaskRun(kind, "panic")
			s.logger.Error().
				Str(log.FieldTask, task.Name).
				Interface("panic", r).
				Msg("task panicked")
		}
	}()

	start := time.Now()
	task.Callback(s.ctx)
	metrics.IncSchedulerTaskRun(kind, "ok")
	s.logger.Debug().
		Str(log.FieldTask, task.Name).
		Dur("duration", time.Since(start)).
		Msg("task finished")
}

// Pending reports whether a task with that name is registered.
func (s *Scheduler) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[name]
	return ok
}

var _ ports.Scheduler = (*Scheduler)(nil)
