// Package booking is the application layer of the booking API. It validates requests,
// calls the store, and after every committed mutation invalidates the read cache,
// publishes the matching event and keeps the appointment's reminder in step.
//
// Work that follows a committed mutation never fails the caller: errors there are
// logged and counted.
package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/carbook/platform/libs/events"
	"github.com/carbook/platform/services/booking-service/internal/availability"
	"github.com/carbook/platform/services/booking-service/internal/cache"
	"github.com/carbook/platform/services/booking-service/internal/metrics"
	"github.com/carbook/platform/services/booking-service/internal/model"
	"github.com/carbook/platform/services/booking-service/internal/reminders"
)

type Store interface {
	availability.PeriodSource
	availability.BusySource

	CreateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error)
	UpdateAppointment(ctx context.Context, id int64, fn func(*model.Appointment) error) (model.Appointment, model.Appointment, error)
	GetAppointment(ctx context.Context, id int64) (model.Appointment, error)
	DeleteAppointment(ctx context.Context, id int64) (model.Appointment, error)
	ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)

	CreateService(ctx context.Context, svc model.Service) (model.Service, error)
	GetService(ctx context.Context, id int64) (model.Service, error)
	ListServices(ctx context.Context) ([]model.Service, error)
	UpdateService(ctx context.Context, id int64, fn func(*model.Service) error) (model.Service, error)
	DeleteService(ctx context.Context, id int64) error

	CreateClient(ctx context.Context, c model.Client) (model.Client, error)
	GetClient(ctx context.Context, id int64) (model.Client, error)
	FindClient(ctx context.Context, q model.ClientLookup) (model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	UpdateClient(ctx context.Context, id int64, fn func(*model.Client) error) (model.Client, error)
	DeleteClient(ctx context.Context, id int64) error

	CreateWorkingPeriod(ctx context.Context, p model.WorkingPeriod) (model.WorkingPeriod, error)
	GetWorkingPeriod(ctx context.Context, id int64) (model.WorkingPeriod, error)
	ListWorkingPeriods(ctx context.Context) ([]model.WorkingPeriod, error)
	UpdateWorkingPeriod(ctx context.Context, id int64, fn func(*model.WorkingPeriod) error) (model.WorkingPeriod, error)
	DeleteWorkingPeriod(ctx context.Context, id int64) error

	CreateMessage(ctx context.Context, m model.Message) (model.Message, error)
	ListMessages(ctx context.Context, f model.MessageFilter) ([]model.Message, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkMessageRead(ctx context.Context, id int64) (model.Message, error)
}

type Deps struct {
	Store     Store
	Cache     *cache.Cache
	Reminders *reminders.Scheduler
	Publisher events.Publisher
	Clock     availability.Clock
	Logger    *slog.Logger
}

type Service struct {
	store     Store
	cache     *cache.Cache
	reminders *reminders.Scheduler
	publisher events.Publisher
	slots     *availability.Generator
	clock     availability.Clock
	logger    *slog.Logger
}

func New(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = availability.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		store:     d.Store,
		cache:     d.Cache,
		reminders: d.Reminders,
		publisher: d.Publisher,
		slots:     availability.NewGenerator(d.Store, d.Store, d.Clock),
		clock:     d.Clock,
		logger:    d.Logger,
	}
}

// ListSlots is never cached; it reflects bookings committed a moment ago.
func (s *Service) ListSlots(ctx context.Context, date string) ([]model.TimeSlot, error) {
	defer metrics.ObserveSince(metrics.SlotRequestDuration, time.Now())
	return s.slots.ListSlots(ctx, date)
}

func (s *Service) invalidate(ctx context.Context, namespaces ...string) {
	for _, ns := range namespaces {
		// Failures are logged and counted inside the cache.
		_ = s.cache.Invalidate(ctx, ns)
	}
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		metrics.EventPublishFailures.WithLabelValues(string(ev.Type)).Inc()
		s.logger.Error("event publish failed", "type", ev.Type, "event_id", ev.ID, "err", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
}
