package booking

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carbook/platform/libs/events"
	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/cache"
	"github.com/carbook/platform/services/booking-service/internal/metrics"
	"github.com/carbook/platform/services/booking-service/internal/model"
	"github.com/carbook/platform/services/booking-service/internal/reminders"
)

type CreateAppointmentInput struct {
	ClientID      int64     `json:"client_id"`
	ServiceID     int64     `json:"service_id"`
	CarModel      string    `json:"car_model"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

// CreateAppointment books a pending appointment. The store rejects a time that does not
// start a working slot and a slot already taken.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (model.Appointment, error) {
	if in.ClientID <= 0 || in.ServiceID <= 0 {
		return model.Appointment{}, apperr.InvalidArgument("client_id and service_id are required")
	}
	if in.ScheduledTime.IsZero() {
		return model.Appointment{}, apperr.InvalidArgument("scheduled_time is required")
	}
	if !in.ScheduledTime.After(s.clock.Now()) {
		return model.Appointment{}, apperr.InvalidArgument("scheduled_time must be in the future")
	}

	a, err := s.store.CreateAppointment(ctx, model.Appointment{
		ClientID:      in.ClientID,
		ServiceID:     in.ServiceID,
		CarModel:      strings.TrimSpace(in.CarModel),
		ScheduledTime: in.ScheduledTime.UTC(),
		Status:        model.StatusPending,
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			metrics.BookingConflicts.Inc()
		}
		return model.Appointment{}, err
	}
	metrics.AppointmentsCreated.Inc()

	s.invalidate(ctx, cache.NamespaceAppointments)
	s.publish(ctx, events.NewAppointmentCreated(a.Event()))
	s.scheduleReminder(ctx, a)
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (model.Appointment, error) {
	return cache.Load(ctx, s.cache, cache.NamespaceAppointments, "id:"+strconv.FormatInt(id, 10),
		func(ctx context.Context) (model.Appointment, error) {
			return s.store.GetAppointment(ctx, id)
		})
}

func (s *Service) ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.InvalidArgument("unknown status " + strconv.Quote(string(f.Status)))
	}
	day := ""
	if !f.Day.IsZero() {
		day = f.Day.Format(model.DateLayout)
	}
	key := fmt.Sprintf("list:client=%d:status=%s:day=%s", f.ClientID, f.Status, day)
	return cache.Load(ctx, s.cache, cache.NamespaceAppointments, key,
		func(ctx context.Context) ([]model.Appointment, error) {
			return s.store.ListAppointments(ctx, f)
		})
}

// PatchAppointment applies a partial update. A status change must follow the state
// machine and emits appointment_status_changed. Reaching a final status cancels the
// reminder; moving an active appointment reschedules it.
func (s *Service) PatchAppointment(ctx context.Context, id int64, patch model.AppointmentPatch) (model.Appointment, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return model.Appointment{}, apperr.InvalidArgument("unknown status " + strconv.Quote(string(*patch.Status)))
	}
	if patch.ScheduledTime != nil && !patch.ScheduledTime.After(s.clock.Now()) {
		return model.Appointment{}, apperr.InvalidArgument("scheduled_time must be in the future")
	}
	if patch.ServiceID != nil && *patch.ServiceID <= 0 {
		return model.Appointment{}, apperr.InvalidArgument("service_id must be positive")
	}

	prev, next, err := s.store.UpdateAppointment(ctx, id, func(a *model.Appointment) error {
		if patch.Status != nil && *patch.Status != a.Status {
			if !model.CanTransition(a.Status, *patch.Status) {
				return apperr.Conflict(fmt.Sprintf("cannot change status from %s to %s", a.Status, *patch.Status))
			}
			a.Status = *patch.Status
		}
		if patch.ScheduledTime != nil {
			a.ScheduledTime = patch.ScheduledTime.UTC()
		}
		if patch.CarModel != nil {
			a.CarModel = strings.TrimSpace(*patch.CarModel)
		}
		if patch.ServiceID != nil {
			a.ServiceID = *patch.ServiceID
		}
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			metrics.BookingConflicts.Inc()
		}
		return model.Appointment{}, err
	}

	s.invalidate(ctx, cache.NamespaceAppointments)
	if prev.Status != next.Status {
		s.publish(ctx, events.NewStatusChanged(next.Event(), string(prev.Status)))
	}
	switch {
	case next.Status.Final() && !prev.Status.Final():
		s.cancelReminder(ctx, next)
	case !next.Status.Final() && !next.ScheduledTime.Equal(prev.ScheduledTime):
		s.rescheduleReminder(ctx, next)
	}
	return next, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id int64) error {
	a, err := s.store.DeleteAppointment(ctx, id)
	if err != nil {
		return err
	}
	s.invalidate(ctx, cache.NamespaceAppointments)
	s.cancelReminder(ctx, a)
	return nil
}

func (s *Service) scheduleReminder(ctx context.Context, a model.Appointment) {
	if s.reminders == nil {
		return
	}
	if err := s.reminders.ScheduleAppointment(ctx, a); err != nil {
		metrics.ReminderScheduleFailures.WithLabelValues("schedule").Inc()
		s.logger.Error("reminder schedule failed", "appointment_id", a.ID, "err", err)
	}
}

func (s *Service) rescheduleReminder(ctx context.Context, a model.Appointment) {
	if s.reminders == nil {
		return
	}
	_, err := s.reminders.Reschedule(ctx, reminders.Key(a.ClientID, a.ID), s.reminders.ReminderFireAt(a.ScheduledTime))
	if apperr.Is(err, apperr.KindNotFound) {
		// The original schedule was lost; create it now.
		err = s.reminders.ScheduleAppointment(ctx, a)
	}
	if err != nil {
		metrics.ReminderScheduleFailures.WithLabelValues("reschedule").Inc()
		s.logger.Error("reminder reschedule failed", "appointment_id", a.ID, "err", err)
	}
}

func (s *Service) cancelReminder(ctx context.Context, a model.Appointment) {
	if s.reminders == nil {
		return
	}
	if err := s.reminders.CancelAppointment(ctx, a); err != nil {
		metrics.ReminderScheduleFailures.WithLabelValues("cancel").Inc()
		s.logger.Error("reminder cancel failed", "appointment_id", a.ID, "err", err)
	}
}
