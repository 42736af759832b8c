package events

import (
	"context"
	"fmt"
)

// Handler has one method per event Type.
type Handler interface {
	OnNewAppointment(ctx context.Context, ev Event) error
	OnStatusChanged(ctx context.Context, ev Event) error
	OnReminderDue(ctx context.Context, ev Event) error
	OnNewMessage(ctx context.Context, ev Event) error
}

func Dispatch(ctx context.Context, ev Event, h Handler) error {
	switch ev.Type {
	case TypeNewAppointment:
		return h.OnNewAppointment(ctx, ev)
	case TypeStatusChanged:
		return h.OnStatusChanged(ctx, ev)
	case TypeReminderDue:
		return h.OnReminderDue(ctx, ev)
	case TypeNewMessage:
		return h.OnNewMessage(ctx, ev)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, ev.Type)
	}
}
