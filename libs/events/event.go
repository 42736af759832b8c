// Package events defines the notification envelope shared by the booking API, the
// reminder worker and the notification consumers, and the transports that carry it.
//
// There is one logical channel. Every envelope carries a Type from a closed set and
// consumers route on it through Dispatch, so adding a Type without teaching every
// Handler about it is a compile error rather than a silently dropped event.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	otelx "github.com/carbook/platform/libs/otel"
	"github.com/google/uuid"
)

type Type string

const (
	TypeNewAppointment Type = "new_appointment"
	TypeStatusChanged  Type = "appointment_status_changed"
	TypeReminderDue    Type = "reminder_due"
	TypeNewMessage     Type = "new_message"
)

// DefaultChannel is the Redis channel and Kafka topic name used when none is configured.
const DefaultChannel = "notifications"

var ErrUnknownType = errors.New("unknown event type")

func (t Type) Valid() bool {
	switch t {
	case TypeNewAppointment, TypeStatusChanged, TypeReminderDue, TypeNewMessage:
		return true
	}
	return false
}

// Appointment is the wire snapshot of an appointment at the moment the event was emitted.
type Appointment struct {
	ID            int64     `json:"id"`
	ClientID      int64     `json:"client_id"`
	ServiceID     int64     `json:"service_id"`
	CarModel      string    `json:"car_model,omitempty"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type Message struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	IsFromAdmin int       `json:"is_from_admin"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Event is the envelope published on the notifications channel. Which optional fields
// are set depends on Type:
//
//	new_appointment             Appointment
//	appointment_status_changed  Appointment, PreviousStatus
//	reminder_due                AppointmentID, ClientID
//	new_message                 Message
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	Appointment    *Appointment `json:"appointment,omitempty"`
	PreviousStatus string       `json:"previous_status,omitempty"`
	AppointmentID  int64        `json:"appointment_id,omitempty"`
	ClientID       int64        `json:"client_id,omitempty"`
	Message        *Message     `json:"message,omitempty"`

	Trace *otelx.TraceCarrier `json:"trace,omitempty"`
}

func newEvent(t Type) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}

func NewAppointmentCreated(a Appointment) Event {
	ev := newEvent(TypeNewAppointment)
	ev.Appointment = &a
	return ev
}

func NewStatusChanged(a Appointment, previous string) Event {
	ev := newEvent(TypeStatusChanged)
	ev.Appointment = &a
	ev.PreviousStatus = previous
	return ev
}

func NewReminderDue(appointmentID, clientID int64) Event {
	ev := newEvent(TypeReminderDue)
	ev.AppointmentID = appointmentID
	ev.ClientID = clientID
	return ev
}

func NewMessageCreated(m Message) Event {
	ev := newEvent(TypeNewMessage)
	ev.Message = &m
	return ev
}

// Validate checks that the fields required by the event's Type are present.
func (e Event) Validate() error {
	switch e.Type {
	case TypeNewAppointment:
		if e.Appointment == nil {
			return errors.New("new_appointment: missing appointment")
		}
	case TypeStatusChanged:
		if e.Appointment == nil {
			return errors.New("appointment_status_changed: missing appointment")
		}
	case TypeReminderDue:
		if e.AppointmentID == 0 {
			return errors.New("reminder_due: missing appointment_id")
		}
	case TypeNewMessage:
		if e.Message == nil {
			return errors.New("new_message: missing message")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	return nil
}

func Encode(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

func Decode(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// AppointmentKey returns the id of the appointment the event is about, or 0.
func (e Event) AppointmentKey() int64 {
	if e.Appointment != nil {
		return e.Appointment.ID
	}
	return e.AppointmentID
}
