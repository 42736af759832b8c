// Package memory is an in-process implementation of the booking stores with the same
// error semantics as the PostgreSQL one. It backs tests and STORAGE_BACKEND=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/availability"
	"github.com/carbook/platform/services/booking-service/internal/model"
)

type Store struct {
	mu              sync.Mutex
	defaultDuration time.Duration
	now             func() time.Time

	nextID        int64
	appointments  map[int64]model.Appointment
	services      map[int64]model.Service
	clients       map[int64]model.Client
	periods       map[int64]model.WorkingPeriod
	messages      map[int64]model.Message
	notifications map[string]model.ScheduledNotification
}

func New(defaultDuration time.Duration) *Store {
	return &Store{
		defaultDuration: defaultDuration,
		now:             func() time.Time { return time.Now().UTC() },
		appointments:    map[int64]model.Appointment{},
		services:        map[int64]model.Service{},
		clients:         map[int64]model.Client{},
		periods:         map[int64]model.WorkingPeriod{},
		messages:        map[int64]model.Message{},
		notifications:   map[string]model.ScheduledNotification{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) busyWindow(serviceID int64, start time.Time) (availability.Interval, error) {
	svc, ok := s.services[serviceID]
	if !ok {
		return availability.Interval{}, apperr.InvalidArgument("unknown service_id")
	}
	return availability.BusyWindow(start, svc, s.defaultDuration), nil
}

func (s *Store) ensureOnSlot(start time.Time) error {
	day := model.NewDate(start.UTC())
	periods := s.sortedPeriods(func(p model.WorkingPeriod) bool { return p.Active && p.Covers(day) })
	if _, ok := availability.SlotStartingAt(periods, start); !ok {
		return availability.ErrNotASlot
	}
	return nil
}

func (s *Store) ensureFree(win availability.Interval, exceptID int64) error {
	for id, a := range s.appointments {
		if id == exceptID || !a.Status.Blocking() {
			continue
		}
		if availability.Overlaps(win, availability.Interval{Start: a.ScheduledTime, End: a.EndsAt}) {
			return apperr.Conflict("time slot already booked")
		}
	}
	return nil
}

func (s *Store) CreateAppointment(_ context.Context, a model.Appointment) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[a.ClientID]; !ok {
		return model.Appointment{}, apperr.InvalidArgument("referenced record does not exist")
	}
	win, err := s.busyWindow(a.ServiceID, a.ScheduledTime)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.ensureOnSlot(win.Start); err != nil {
		return model.Appointment{}, err
	}
	if a.Status.Blocking() {
		if err := s.ensureFree(win, 0); err != nil {
			return model.Appointment{}, err
		}
	}
	a.ID = s.id()
	a.ScheduledTime, a.EndsAt = win.Start, win.End
	a.CreatedAt = s.now()
	s.appointments[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAppointment(_ context.Context, id int64, fn func(*model.Appointment) error) (model.Appointment, model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, model.Appointment{}, apperr.NotFound("appointment not found")
	}
	next := prev
	if err := fn(&next); err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	if !next.ScheduledTime.Equal(prev.ScheduledTime) || next.ServiceID != prev.ServiceID {
		win, err := s.busyWindow(next.ServiceID, next.ScheduledTime)
		if err != nil {
			return model.Appointment{}, model.Appointment{}, err
		}
		if !next.ScheduledTime.Equal(prev.ScheduledTime) {
			if err := s.ensureOnSlot(win.Start); err != nil {
				return model.Appointment{}, model.Appointment{}, err
			}
		}
		next.ScheduledTime, next.EndsAt = win.Start, win.End
		if next.Status.Blocking() {
			if err := s.ensureFree(win, id); err != nil {
				return model.Appointment{}, model.Appointment{}, err
			}
		}
	}
	next.ID, next.ClientID, next.CreatedAt = prev.ID, prev.ClientID, prev.CreatedAt
	s.appointments[id] = next
	return prev, next, nil
}

func (s *Store) GetAppointment(_ context.Context, id int64) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, apperr.NotFound("appointment not found")
	}
	return a, nil
}

func (s *Store) DeleteAppointment(_ context.Context, id int64) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, apperr.NotFound("appointment not found")
	}
	delete(s.appointments, id)
	return a, nil
}

func sortAppointments(out []model.Appointment) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
}

func (s *Store) ListAppointments(_ context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Appointment{}
	for _, a := range s.appointments {
		if f.ClientID != 0 && a.ClientID != f.ClientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if !f.Day.IsZero() {
			day := availability.Interval{Start: f.Day, End: f.Day.AddDate(0, 0, 1)}
			if !day.Contains(a.ScheduledTime) {
				continue
			}
		}
		out = append(out, a)
	}
	sortAppointments(out)
	return out, nil
}

func (s *Store) ListBusy(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	window := availability.Interval{Start: from, End: to}
	out := []model.Appointment{}
	for _, a := range s.appointments {
		if a.Status.Blocking() && availability.Overlaps(window, availability.Interval{Start: a.ScheduledTime, End: a.EndsAt}) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}
