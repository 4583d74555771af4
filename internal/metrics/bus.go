// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetd_bus_published_total",
		Help: "Total number of recording events published by bus backend",
	}, []string{"backend"})

	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetd_bus_dropped_total",
		Help: "Total number of recording event drops by topic and reason",
	}, []string{"topic", "reason"})
)

// IncBusPublished records a successful publish on the given backend.
func IncBusPublished(backend string) {
	BusPublishedTotal.WithLabelValues(backend).Inc()
}

// IncBusDropReason records a dropped bus message with a concrete reason.
// Per-room topics are collapsed to keep label cardinality bounded.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(normalizeTopic(topic), reason).Inc()
}

func normalizeTopic(topic string) string {
	const activePrefix = "recording.active."
	if len(topic) > len(activePrefix) && topic[:len(activePrefix)] == activePrefix {
		return "recording.active"
	}
	return topic
}
