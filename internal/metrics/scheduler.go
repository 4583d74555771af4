package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SchedulerTaskRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetd_scheduler_task_runs_total",
		Help: "Scheduler task executions by task kind and outcome",
	}, []string{"task", "outcome"})

	schedulerPendingTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meetd_scheduler_pending_tasks",
		Help: "Number of registered scheduler tasks",
	})
)

// IncSchedulerTaskRun records one task execution. task is a low-cardinality kind,
// not the per-room task name.
func IncSchedulerTaskRun(task, outcome string) {
	SchedulerTaskRunsTotal.WithLabelValues(task, outcome).Inc()
}

// SetSchedulerPendingTasks reports the number of registered tasks.
func SetSchedulerPendingTasks(n int) {
	schedulerPendingTasks.Set(float64(n))
}
