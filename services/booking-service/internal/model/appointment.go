package model

import (
	"time"

	"github.com/carbook/platform/libs/events"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// Blocking reports whether an appointment in this status occupies its time.
func (s Status) Blocking() bool {
	return s != StatusCancelled && s != StatusRejected
}

// Final reports whether the appointment can no longer produce a reminder.
func (s Status) Final() bool {
	return s == StatusCancelled || s == StatusRejected || s == StatusCompleted
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusRejected},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID            int64     `json:"id"`
	ClientID      int64     `json:"client_id"`
	ServiceID     int64     `json:"service_id"`
	CarModel      string    `json:"car_model"`
	ScheduledTime time.Time `json:"scheduled_time"`
	EndsAt        time.Time `json:"ends_at"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func (a Appointment) Event() events.Appointment {
	return events.Appointment{
		ID:            a.ID,
		ClientID:      a.ClientID,
		ServiceID:     a.ServiceID,
		CarModel:      a.CarModel,
		ScheduledTime: a.ScheduledTime.UTC(),
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt.UTC(),
	}
}

// AppointmentPatch carries a partial update; nil fields are left unchanged.
type AppointmentPatch struct {
	ScheduledTime *time.Time `json:"scheduled_time"`
	Status        *Status    `json:"status"`
	CarModel      *string    `json:"car_model"`
	ServiceID     *int64     `json:"service_id"`
}

type AppointmentFilter struct {
	ClientID int64
	Status   Status
	// Day restricts to appointments starting on this UTC calendar date when non-zero.
	Day time.Time
}
