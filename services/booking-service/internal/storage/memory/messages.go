package memory

import (
	"context"
	"sort"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/model"
)

func (s *Store) CreateMessage(_ context.Context, m model.Message) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[m.UserID]; !ok {
		return model.Message{}, apperr.InvalidArgument("referenced record does not exist")
	}
	m.ID = s.id()
	m.IsRead = 0
	m.CreatedAt = s.now()
	s.messages[m.ID] = m
	return m, nil
}

func (s *Store) ListMessages(_ context.Context, f model.MessageFilter) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Message{}
	for _, m := range s.messages {
		if f.UserID != nil && m.UserID != *f.UserID {
			continue
		}
		if f.IsRead != nil && m.IsRead != *f.IsRead {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if f.Offset >= len(out) {
		return []model.Message{}, nil
	}
	out = out[f.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UnreadCount(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.UserID == userID && m.IsRead == 0 && m.IsFromAdmin == 1 {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkMessageRead(_ context.Context, id int64) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return model.Message{}, apperr.NotFound("message not found")
	}
	m.IsRead = 1
	s.messages[id] = m
	return m, nil
}

func (s *Store) SaveNotification(_ context.Context, n model.ScheduledNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.UpdatedAt = s.now()
	s.notifications[n.ID] = n
	return nil
}

func (s *Store) GetNotification(_ context.Context, id string) (model.ScheduledNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return model.ScheduledNotification{}, apperr.NotFound("notification not found")
	}
	return n, nil
}

func (s *Store) SetNotificationStatus(_ context.Context, id string, status model.NotificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return apperr.NotFound("notification not found")
	}
	n.Status = status
	n.UpdatedAt = s.now()
	s.notifications[id] = n
	return nil
}

func (s *Store) ListNotifications(_ context.Context, clientID int64) ([]model.ScheduledNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.ScheduledNotification{}
	for _, n := range s.notifications {
		if n.Status != model.NotificationPending {
			continue
		}
		if clientID != 0 && n.ClientID != clientID {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}
