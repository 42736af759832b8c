package booking

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/cache"
	"github.com/carbook/platform/services/booking-service/internal/model"
)

func idKey(id int64) string {
	return "id:" + strconv.FormatInt(id, 10)
}

func validateService(svc model.Service) error {
	if strings.TrimSpace(svc.Name) == "" {
		return apperr.InvalidArgument("name is required")
	}
	if svc.Price < 0 {
		return apperr.InvalidArgument("price must not be negative")
	}
	if svc.DurationMinutes != nil && *svc.DurationMinutes <= 0 {
		return apperr.InvalidArgument("duration_minutes must be positive")
	}
	return nil
}

func (s *Service) CreateService(ctx context.Context, svc model.Service) (model.Service, error) {
	svc.Name = strings.TrimSpace(svc.Name)
	if err := validateService(svc); err != nil {
		return model.Service{}, err
	}
	out, err := s.store.CreateService(ctx, svc)
	if err != nil {
		return model.Service{}, err
	}
	s.invalidate(ctx, cache.NamespaceServices)
	return out, nil
}

func (s *Service) GetService(ctx context.Context, id int64) (model.Service, error) {
	return cache.Load(ctx, s.cache, cache.NamespaceServices, idKey(id), func(ctx context.Context) (model.Service, error) {
		return s.store.GetService(ctx, id)
	})
}

func (s *Service) ListServices(ctx context.Context) ([]model.Service, error) {
	return cache.Load(ctx, s.cache, cache.NamespaceServices, "list", s.store.ListServices)
}

// UpdateService changes the catalog entry. A new duration only affects bookings made or
// moved afterwards; existing busy windows keep the width they were stored with.
func (s *Service) UpdateService(ctx context.Context, id int64, patch model.ServicePatch) (model.Service, error) {
	out, err := s.store.UpdateService(ctx, id, func(cur *model.Service) error {
		next := cur.Apply(patch)
		next.Name = strings.TrimSpace(next.Name)
		if err := validateService(next); err != nil {
			return err
		}
		*cur = next
		return nil
	})
	if err != nil {
		return model.Service{}, err
	}
	s.invalidate(ctx, cache.NamespaceServices)
	return out, nil
}

func (s *Service) DeleteService(ctx context.Context, id int64) error {
	if err := s.store.DeleteService(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cache.NamespaceServices)
	return nil
}

func validateClient(c model.Client) error {
	if c.TelegramID == nil && (c.PhoneNumber == nil || strings.TrimSpace(*c.PhoneNumber) == "") {
		return apperr.InvalidArgument("telegram_id or phone_number is required")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return apperr.InvalidArgument("unknown timezone " + strconv.Quote(c.Timezone))
		}
	}
	return nil
}

func (s *Service) CreateClient(ctx context.Context, c model.Client) (model.Client, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := validateClient(c); err != nil {
		return model.Client{}, err
	}
	out, err := s.store.CreateClient(ctx, c)
	if err != nil {
		return model.Client{}, err
	}
	s.invalidate(ctx, cache.NamespaceClients)
	return out, nil
}

func (s *Service) GetClient(ctx context.Context, id int64) (model.Client, error) {
	return cache.Load(ctx, s.cache, cache.NamespaceClients, idKey(id), func(ctx context.Context) (model.Client, error) {
		return s.store.GetClient(ctx, id)
	})
}

func (s *Service) FindClient(ctx context.Context, q model.ClientLookup) (model.Client, error) {
	return s.store.FindClient(ctx, q)
}

func (s *Service) ListClients(ctx context.Context) ([]model.Client, error) {
	return cache.Load(ctx, s.cache, cache.NamespaceClients, "list", s.store.ListClients)
}

func (s *Service) UpdateClient(ctx context.Context, id int64, patch model.ClientPatch) (model.Client, error) {
	out, err := s.store.UpdateClient(ctx, id, func(cur *model.Client) error {
		next := cur.Apply(patch)
		next.Name = strings.TrimSpace(next.Name)
		if err := validateClient(next); err != nil {
			return err
		}
		*cur = next
		return nil
	})
	if err != nil {
		return model.Client{}, err
	}
	s.invalidate(ctx, cache.NamespaceClients)
	return out, nil
}

func (s *Service) DeleteClient(ctx context.Context, id int64) error {
	if err := s.store.DeleteClient(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cache.NamespaceClients)
	return nil
}

func (s *Service) CreateWorkingPeriod(ctx context.Context, p model.WorkingPeriod) (model.WorkingPeriod, error) {
	if err := p.Validate(); err != nil {
		return model.WorkingPeriod{}, err
	}
	out, err := s.store.CreateWorkingPeriod(ctx, p)
	if err != nil {
		return model.WorkingPeriod{}, err
	}
	s.invalidate(ctx, cache.NamespaceWorkingPeriods)
	return out, nil
}

func (s *Service) GetWorkingPeriod(ctx context.Context, id int64) (model.WorkingPeriod, error) {
	return cache.Load(ctx, s.cache, cache.NamespaceWorkingPeriods, idKey(id), func(ctx context.Context) (model.WorkingPeriod, error) {
		return s.store.GetWorkingPeriod(ctx, id)
	})
}

func (s *Service) ListWorkingPeriods(ctx context.Context) ([]model.WorkingPeriod, error) {
	return cache.Load(ctx, s.cache, cache.NamespaceWorkingPeriods, "list", s.store.ListWorkingPeriods)
}

func (s *Service) UpdateWorkingPeriod(ctx context.Context, id int64, patch model.WorkingPeriodPatch) (model.WorkingPeriod, error) {
	out, err := s.store.UpdateWorkingPeriod(ctx, id, func(cur *model.WorkingPeriod) error {
		next := cur.Apply(patch)
		if err := next.Validate(); err != nil {
			return err
		}
		*cur = next
		return nil
	})
	if err != nil {
		return model.WorkingPeriod{}, err
	}
	s.invalidate(ctx, cache.NamespaceWorkingPeriods)
	return out, nil
}

func (s *Service) DeleteWorkingPeriod(ctx context.Context, id int64) error {
	if err := s.store.DeleteWorkingPeriod(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cache.NamespaceWorkingPeriods)
	return nil
}
