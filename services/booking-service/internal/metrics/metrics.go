package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AppointmentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_appointments_created_total",
			Help: "Appointments accepted by the store.",
		},
	)

	BookingConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_conflicts_total",
			Help: "Create or update requests rejected because the time was already taken.",
		},
	)

	SlotRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booking_slot_generation_duration_seconds",
			Help:    "Time spent generating the slot list for one date.",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReminderScheduleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_reminder_schedule_failures_total",
			Help: "Reminder schedule/reschedule/cancel calls that failed after a committed mutation.",
		},
		[]string{"op"},
	)

	RemindersFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_reminders_fired_total",
			Help: "Reminder jobs handled by the worker, by outcome.",
		},
		[]string{"outcome"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_events_published_total",
			Help: "Events published to the notifications channel.",
		},
		[]string{"type"},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_event_publish_failures_total",
			Help: "Events that could not be published.",
		},
		[]string{"type"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_cache_requests_total",
			Help: "Read-through cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	CacheInvalidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_cache_invalidation_failures_total",
			Help: "Namespace version bumps that failed.",
		},
		[]string{"namespace"},
	)
)

// ObserveSince records the elapsed time since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
