package booking

import (
	"context"
	"time"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/model"
	"github.com/carbook/platform/services/booking-service/internal/reminders"
)

type ScheduleNotificationInput struct {
	ScheduledTime time.Time `json:"scheduled_time"`
	ClientID      int64     `json:"client_id"`
	Payload       struct {
		AppointmentID int64 `json:"appointment_id"`
	} `json:"payload"`
}

var errRemindersDisabled = apperr.New(apperr.KindTransientIO, "reminders are not configured")

// ScheduleNotification schedules a reminder at an explicit time, replacing any reminder
// already scheduled for the same client and appointment.
func (s *Service) ScheduleNotification(ctx context.Context, in ScheduleNotificationInput) (model.ScheduledNotification, error) {
	if s.reminders == nil {
		return model.ScheduledNotification{}, errRemindersDisabled
	}
	if in.ClientID <= 0 || in.Payload.AppointmentID <= 0 {
		return model.ScheduledNotification{}, apperr.InvalidArgument("client_id and payload.appointment_id are required")
	}
	a, err := s.store.GetAppointment(ctx, in.Payload.AppointmentID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return model.ScheduledNotification{}, apperr.InvalidArgument("unknown appointment_id")
		}
		return model.ScheduledNotification{}, err
	}
	if a.ClientID != in.ClientID {
		return model.ScheduledNotification{}, apperr.InvalidArgument("appointment does not belong to client")
	}
	return s.reminders.Schedule(ctx, reminders.Job{
		ClientID:      in.ClientID,
		AppointmentID: a.ID,
		FireAt:        in.ScheduledTime,
	})
}

func (s *Service) RescheduleNotification(ctx context.Context, key string, fireAt time.Time) (model.ScheduledNotification, error) {
	if s.reminders == nil {
		return model.ScheduledNotification{}, errRemindersDisabled
	}
	return s.reminders.Reschedule(ctx, key, fireAt)
}

func (s *Service) CancelNotification(ctx context.Context, key string) error {
	if s.reminders == nil {
		return errRemindersDisabled
	}
	return s.reminders.Cancel(ctx, key)
}

func (s *Service) ListNotifications(ctx context.Context, clientID int64) ([]model.ScheduledNotification, error) {
	if s.reminders == nil {
		return []model.ScheduledNotification{}, nil
	}
	return s.reminders.List(ctx, clientID)
}
