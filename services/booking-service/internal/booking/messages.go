package booking

import (
	"context"
	"strings"

	"github.com/carbook/platform/libs/events"
	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/model"
)

// CreateMessage stores a chat message and emits new_message. Customers' messages reach
// staff; administrator messages (is_from_admin=1) reach the customer.
func (s *Service) CreateMessage(ctx context.Context, m model.Message) (model.Message, error) {
	m.Text = strings.TrimSpace(m.Text)
	if m.UserID <= 0 {
		return model.Message{}, apperr.InvalidArgument("user_id is required")
	}
	if m.Text == "" {
		return model.Message{}, apperr.InvalidArgument("text is required")
	}
	if m.IsFromAdmin != 0 && m.IsFromAdmin != 1 {
		return model.Message{}, apperr.InvalidArgument("is_from_admin must be 0 or 1")
	}
	out, err := s.store.CreateMessage(ctx, m)
	if err != nil {
		return model.Message{}, err
	}
	s.publish(ctx, events.NewMessageCreated(out.Event()))
	return out, nil
}

func (s *Service) ListMessages(ctx context.Context, f model.MessageFilter) ([]model.Message, error) {
	if f.IsRead != nil && *f.IsRead != 0 && *f.IsRead != 1 {
		return nil, apperr.InvalidArgument("is_read must be 0 or 1")
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, apperr.InvalidArgument("limit and offset must not be negative")
	}
	return s.store.ListMessages(ctx, f)
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}

func (s *Service) MarkMessageRead(ctx context.Context, id int64) (model.Message, error) {
	return s.store.MarkMessageRead(ctx, id)
}
