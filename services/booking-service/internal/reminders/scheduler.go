// Package reminders schedules, replaces and cancels the deferred reminder job of each
// appointment, and fires due jobs in the reminder worker.
//
// There is at most one job per (client, appointment) key. The queue executes jobs; the
// ledger remembers what was scheduled so jobs can be listed and rescheduled with their
// original payload.
package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	otelx "github.com/carbook/platform/libs/otel"
	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/model"
)

const DefaultLead = time.Hour

// Payload carries identifiers only. Appointment state is re-read when the job fires.
type Payload struct {
	AppointmentID int64               `json:"appointment_id"`
	ClientID      int64               `json:"client_id"`
	Trace         *otelx.TraceCarrier `json:"trace,omitempty"`
}

type Job struct {
	ClientID      int64
	AppointmentID int64
	FireAt        time.Time
}

func (j Job) Key() string {
	return Key(j.ClientID, j.AppointmentID)
}

func Key(clientID, appointmentID int64) string {
	return fmt.Sprintf("reminder:%d:%d", clientID, appointmentID)
}

type Ledger interface {
	SaveNotification(ctx context.Context, n model.ScheduledNotification) error
	GetNotification(ctx context.Context, id string) (model.ScheduledNotification, error)
	SetNotificationStatus(ctx context.Context, id string, status model.NotificationStatus) error
	ListNotifications(ctx context.Context, clientID int64) ([]model.ScheduledNotification, error)
}

type Scheduler struct {
	queue  Queue
	ledger Ledger
	lead   time.Duration
	logger *slog.Logger
}

func NewScheduler(queue Queue, ledger Ledger, lead time.Duration, logger *slog.Logger) *Scheduler {
	if lead <= 0 {
		lead = DefaultLead
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{queue: queue, ledger: ledger, lead: lead, logger: logger}
}

// ReminderFireAt is when the reminder for an appointment at scheduledTime fires.
func (s *Scheduler) ReminderFireAt(scheduledTime time.Time) time.Time {
	return scheduledTime.Add(-s.lead)
}

// Schedule replaces whatever job is queued under the job's key.
func (s *Scheduler) Schedule(ctx context.Context, job Job) (model.ScheduledNotification, error) {
	if job.ClientID == 0 || job.AppointmentID == 0 {
		return model.ScheduledNotification{}, apperr.InvalidArgument("client_id and appointment_id are required")
	}
	if job.FireAt.IsZero() {
		return model.ScheduledNotification{}, apperr.InvalidArgument("scheduled_time is required")
	}
	carrier := otelx.CarrierFromContext(ctx)
	payload := Payload{AppointmentID: job.AppointmentID, ClientID: job.ClientID, Trace: &carrier}
	return s.enqueue(ctx, job.Key(), payload, job.FireAt.UTC())
}

func (s *Scheduler) enqueue(ctx context.Context, key string, payload Payload, fireAt time.Time) (model.ScheduledNotification, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return model.ScheduledNotification{}, err
	}
	if err := s.queue.Delete(ctx, key); err != nil && !errors.Is(err, ErrJobNotFound) {
		return model.ScheduledNotification{}, apperr.Transient("remove previous reminder", err)
	}
	if err := s.queue.Enqueue(ctx, key, raw, fireAt); err != nil {
		return model.ScheduledNotification{}, apperr.Transient("enqueue reminder", err)
	}

	n := model.ScheduledNotification{
		ID:            key,
		ClientID:      payload.ClientID,
		AppointmentID: payload.AppointmentID,
		FireAt:        fireAt,
		Payload:       raw,
		Status:        model.NotificationPending,
	}
	if err := s.ledger.SaveNotification(ctx, n); err != nil {
		return model.ScheduledNotification{}, err
	}
	s.logger.Debug("reminder scheduled", "key", key, "fire_at", fireAt)
	return n, nil
}

// Reschedule moves the job under key to fireAt, keeping its stored payload. It fails
// with NotFound when key was never scheduled.
func (s *Scheduler) Reschedule(ctx context.Context, key string, fireAt time.Time) (model.ScheduledNotification, error) {
	if fireAt.IsZero() {
		return model.ScheduledNotification{}, apperr.InvalidArgument("scheduled_time is required")
	}
	prev, err := s.ledger.GetNotification(ctx, key)
	if err != nil {
		return model.ScheduledNotification{}, err
	}
	var payload Payload
	if err := json.Unmarshal(prev.Payload, &payload); err != nil || payload.AppointmentID == 0 {
		payload = Payload{AppointmentID: prev.AppointmentID, ClientID: prev.ClientID}
	}
	carrier := otelx.CarrierFromContext(ctx)
	payload.Trace = &carrier
	return s.enqueue(ctx, key, payload, fireAt.UTC())
}

// Cancel removes the job under key. Cancelling an unknown key is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, key string) error {
	if err := s.queue.Delete(ctx, key); err != nil && !errors.Is(err, ErrJobNotFound) {
		return apperr.Transient("cancel reminder", err)
	}
	err := s.ledger.SetNotificationStatus(ctx, key, model.NotificationCancelled)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	return err
}

// List returns pending reminders, for one client or for everyone when clientID is 0.
func (s *Scheduler) List(ctx context.Context, clientID int64) ([]model.ScheduledNotification, error) {
	return s.ledger.ListNotifications(ctx, clientID)
}

// ScheduleAppointment (re)schedules the reminder of a.
func (s *Scheduler) ScheduleAppointment(ctx context.Context, a model.Appointment) error {
	_, err := s.Schedule(ctx, Job{
		ClientID:      a.ClientID,
		AppointmentID: a.ID,
		FireAt:        s.ReminderFireAt(a.ScheduledTime),
	})
	return err
}

func (s *Scheduler) CancelAppointment(ctx context.Context, a model.Appointment) error {
	return s.Cancel(ctx, Key(a.ClientID, a.ID))
}
