package memory

import (
	"context"
	"sort"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/model"
)

func (s *Store) CreateService(_ context.Context, svc model.Service) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.services {
		if other.Name == svc.Name {
			return model.Service{}, apperr.Conflict("service already exists")
		}
	}
	svc.ID = s.id()
	s.services[svc.ID] = svc
	return svc, nil
}

func (s *Store) GetService(_ context.Context, id int64) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return model.Service{}, apperr.NotFound("service not found")
	}
	return svc, nil
}

func (s *Store) ListServices(_ context.Context) ([]model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Service, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateService(_ context.Context, id int64, fn func(*model.Service) error) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.services[id]
	if !ok {
		return model.Service{}, apperr.NotFound("service not found")
	}
	if err := fn(&cur); err != nil {
		return model.Service{}, err
	}
	for otherID, other := range s.services {
		if otherID != id && other.Name == cur.Name {
			return model.Service{}, apperr.Conflict("service already exists")
		}
	}
	cur.ID = id
	s.services[id] = cur
	return cur, nil
}

func (s *Store) DeleteService(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[id]; !ok {
		return apperr.NotFound("service not found")
	}
	for _, a := range s.appointments {
		if a.ServiceID == id {
			return apperr.Conflict("service is referenced by appointments")
		}
	}
	delete(s.services, id)
	return nil
}

func sameInt64(a, b *int64) bool {
	return a != nil && b != nil && *a == *b
}

func sameString(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (s *Store) clientClash(c model.Client) bool {
	for id, other := range s.clients {
		if id == c.ID {
			continue
		}
		if sameInt64(c.TelegramID, other.TelegramID) || sameString(c.PhoneNumber, other.PhoneNumber) {
			return true
		}
	}
	return false
}

func (s *Store) CreateClient(_ context.Context, c model.Client) (model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = 0
	if s.clientClash(c) {
		return model.Client{}, apperr.Conflict("client already exists")
	}
	c.ID = s.id()
	s.clients[c.ID] = c
	return c, nil
}

func (s *Store) GetClient(_ context.Context, id int64) (model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return model.Client{}, apperr.NotFound("client not found")
	}
	return c, nil
}

func (s *Store) FindClient(_ context.Context, q model.ClientLookup) (model.Client, error) {
	if q.TelegramID == nil && q.PhoneNumber == "" {
		return model.Client{}, apperr.InvalidArgument("telegram_id or phone_number is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if q.TelegramID != nil {
			if sameInt64(q.TelegramID, c.TelegramID) {
				return c, nil
			}
			continue
		}
		if c.PhoneNumber != nil && *c.PhoneNumber == q.PhoneNumber {
			return c, nil
		}
	}
	return model.Client{}, apperr.NotFound("client not found")
}

func (s *Store) ListClients(_ context.Context) ([]model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateClient(_ context.Context, id int64, fn func(*model.Client) error) (model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.clients[id]
	if !ok {
		return model.Client{}, apperr.NotFound("client not found")
	}
	if err := fn(&cur); err != nil {
		return model.Client{}, err
	}
	cur.ID = id
	if s.clientClash(cur) {
		return model.Client{}, apperr.Conflict("client already exists")
	}
	s.clients[id] = cur
	return cur, nil
}

func (s *Store) DeleteClient(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return apperr.NotFound("client not found")
	}
	for _, a := range s.appointments {
		if a.ClientID == id {
			return apperr.Conflict("client is referenced by appointments")
		}
	}
	delete(s.clients, id)
	for mid, m := range s.messages {
		if m.UserID == id {
			delete(s.messages, mid)
		}
	}
	return nil
}

func (s *Store) CreateWorkingPeriod(_ context.Context, p model.WorkingPeriod) (model.WorkingPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.periods[p.ID] = p
	return p, nil
}

func (s *Store) GetWorkingPeriod(_ context.Context, id int64) (model.WorkingPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.periods[id]
	if !ok {
		return model.WorkingPeriod{}, apperr.NotFound("working period not found")
	}
	return p, nil
}

func (s *Store) sortedPeriods(keep func(model.WorkingPeriod) bool) []model.WorkingPeriod {
	out := []model.WorkingPeriod{}
	for _, p := range s.periods {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListWorkingPeriods(_ context.Context) ([]model.WorkingPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sortedPeriods(func(model.WorkingPeriod) bool { return true })
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate.Time) })
	return out, nil
}

func (s *Store) ActivePeriodsOn(_ context.Context, day model.Date) ([]model.WorkingPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedPeriods(func(p model.WorkingPeriod) bool { return p.Active && p.Covers(day) }), nil
}

func (s *Store) UpdateWorkingPeriod(_ context.Context, id int64, fn func(*model.WorkingPeriod) error) (model.WorkingPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.periods[id]
	if !ok {
		return model.WorkingPeriod{}, apperr.NotFound("working period not found")
	}
	if err := fn(&cur); err != nil {
		return model.WorkingPeriod{}, err
	}
	cur.ID = id
	s.periods[id] = cur
	return cur, nil
}

func (s *Store) DeleteWorkingPeriod(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.periods[id]; !ok {
		return apperr.NotFound("working period not found")
	}
	delete(s.periods, id)
	return nil
}
