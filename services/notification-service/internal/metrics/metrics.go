package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_events_received_total",
			Help: "Events read from the notifications channel, by type.",
		},
		[]string{"type"},
	)

	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_events_skipped_total",
			Help: "Events that did not produce a delivery, by reason.",
		},
		[]string{"reason"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Chat deliveries attempted, by audience and status.",
		},
		[]string{"audience", "status"},
	)
)
