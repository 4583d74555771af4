package ports

import (
	"context"
	"time"
)

// TaskType selects how a task is triggered.
type TaskType int

const (
	TaskCron TaskType = iota
	TaskTimeout
)

func (t TaskType) String() string {
	switch t {
	case TaskCron:
		return "cron"
	case TaskTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Task is a named callback run by the scheduler.
type Task struct {
	Name     string
	Type     TaskType
	Schedule string        // cron spec, TaskCron only
	Delay    time.Duration // TaskTimeout only
	Callback func(ctx context.Context)
}

// Scheduler runs named recurring and one-shot callbacks.
type Scheduler interface {
	// RegisterTask replaces any task already registered under the same name.
	RegisterTask(task Task) error
	// CancelTask returns false if no task with that name was pending.
	CancelTask(name string) bool
}
