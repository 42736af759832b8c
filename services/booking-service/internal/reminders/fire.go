package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/carbook/platform/libs/events"
	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/metrics"
	"github.com/carbook/platform/services/booking-service/internal/model"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type AppointmentReader interface {
	GetAppointment(ctx context.Context, id int64) (model.Appointment, error)
}

// FireHandler runs in the reminder worker. It re-reads the appointment and publishes
// reminder_due only while the appointment is still active.
type FireHandler struct {
	appointments AppointmentReader
	ledger       Ledger
	publisher    events.Publisher
	logger       *slog.Logger
}

func NewFireHandler(appointments AppointmentReader, ledger Ledger, publisher events.Publisher, logger *slog.Logger) *FireHandler {
	return &FireHandler{appointments: appointments, ledger: ledger, publisher: publisher, logger: logger}
}

// ProcessTask implements asynq.Handler. A returned error makes asynq retry the task.
func (h *FireHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(task.Payload(), &p); err != nil || p.AppointmentID == 0 {
		metrics.RemindersFired.WithLabelValues("invalid").Inc()
		return fmt.Errorf("decode reminder payload %q: %w", task.Payload(), asynq.SkipRetry)
	}
	if p.Trace != nil {
		ctx = p.Trace.Extract(ctx)
	}
	ctx, span := otel.Tracer("reminder-worker").Start(ctx, "reminder.fire",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.Int64("appointment.id", p.AppointmentID)),
	)
	defer span.End()

	key := Key(p.ClientID, p.AppointmentID)
	logger := h.logger.With("key", key)

	a, err := h.appointments.GetAppointment(ctx, p.AppointmentID)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		metrics.RemindersFired.WithLabelValues("missing").Inc()
		logger.Info("reminder skipped, appointment gone")
		h.settle(ctx, logger, key, model.NotificationCancelled)
		return nil
	case err != nil:
		span.RecordError(err)
		return err
	}
	if a.Status.Final() {
		metrics.RemindersFired.WithLabelValues("skipped").Inc()
		logger.Info("reminder skipped", "status", a.Status)
		h.settle(ctx, logger, key, model.NotificationCancelled)
		return nil
	}

	if err := h.publisher.Publish(ctx, events.NewReminderDue(a.ID, a.ClientID)); err != nil {
		metrics.RemindersFired.WithLabelValues("publish_failed").Inc()
		span.RecordError(err)
		return fmt.Errorf("publish reminder_due: %w", err)
	}
	metrics.RemindersFired.WithLabelValues("published").Inc()
	h.settle(ctx, logger, key, model.NotificationFired)
	return nil
}

func (h *FireHandler) settle(ctx context.Context, logger *slog.Logger, key string, status model.NotificationStatus) {
	if err := h.ledger.SetNotificationStatus(ctx, key, status); err != nil && !apperr.Is(err, apperr.KindNotFound) {
		logger.Warn("ledger update failed", "status", status, "err", err)
	}
}
