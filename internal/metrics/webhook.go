package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetd_webhook_events_total",
		Help: "Inbound egress events by event name and handling result",
	}, []string{"event", "result"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetd_notifications_total",
		Help: "Outbound signed notifications by result",
	}, []string{"result"})
)

// IncWebhookEvent records one inbound egress event.
func IncWebhookEvent(event, result string) {
	WebhookEventsTotal.WithLabelValues(event, result).Inc()
}

// IncNotification records one outbound notification attempt.
func IncNotification(result string) {
	NotificationsTotal.WithLabelValues(result).Inc()
}
