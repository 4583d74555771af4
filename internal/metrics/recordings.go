// Package metrics provides Prometheus metrics for the meetd recording control plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordingOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetd_recording_operations_total",
		Help: "Recording coordinator operations by operation and result code",
	}, []string{"op", "result"})

	LockGCTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetd_lock_gc_total",
		Help: "Orphaned active-recording lock sweep decisions by outcome",
	}, []string{"outcome"})

	StaleGCTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetd_stale_gc_total",
		Help: "Stale recording sweep decisions by outcome",
	}, []string{"outcome"})

	recordingStartDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meetd_recording_start_duration_seconds",
		Help:    "Time from start request to confirmed or failed recording start",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"result"})
)

// IncRecordingOperation records the outcome of a coordinator operation.
// result is "ok" or a lower-case error code.
func IncRecordingOperation(op, result string) {
	RecordingOperationsTotal.WithLabelValues(op, result).Inc()
}

// ObserveRecordingStart records how long a start call took.
func ObserveRecordingStart(result string, seconds float64) {
	recordingStartDuration.WithLabelValues(result).Observe(seconds)
}

// IncLockGC records one orphan-lock sweep decision
// (released, retained, young, missing, error).
func IncLockGC(outcome string) {
	LockGCTotal.WithLabelValues(outcome).Inc()
}

// IncStaleGC records one stale-recording sweep decision
// (aborted, fresh, skipped, error).
func IncStaleGC(outcome string) {
	StaleGCTotal.WithLabelValues(outcome).Inc()
}
