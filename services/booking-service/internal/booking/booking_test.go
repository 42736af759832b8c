package booking

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/carbook/platform/libs/events"
	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/availability"
	"github.com/carbook/platform/services/booking-service/internal/cache"
	"github.com/carbook/platform/services/booking-service/internal/model"
	"github.com/carbook/platform/services/booking-service/internal/reminders"
	"github.com/carbook/platform/services/booking-service/internal/storage/memory"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc    *Service
	store  *memory.Store
	queue  *reminders.MemoryQueue
	events *recorder
	client model.Client
	wash   model.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New(time.Hour)
	queue := reminders.NewMemoryQueue()
	rec := &recorder{}
	svc := New(Deps{
		Store:     store,
		Cache:     cache.New(cache.NewMemoryStore(time.Minute), time.Minute, logger),
		Reminders: reminders.NewScheduler(queue, store, time.Hour, logger),
		Publisher: rec,
		Clock:     availability.FixedClock(now),
		Logger:    logger,
	})

	ctx := context.Background()
	tg := int64(580866264)
	client, err := svc.CreateClient(ctx, model.Client{Name: "Пётр", TelegramID: &tg, Timezone: "Europe/Moscow"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	wash, err := svc.CreateService(ctx, model.Service{Name: "Мойка", Price: 900})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	day := model.NewDate(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if _, err := svc.CreateWorkingPeriod(ctx, model.WorkingPeriod{
		StartDate: day, EndDate: model.NewDate(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)),
		DailyStartTime: "09:00", DailyEndTime: "11:00", SlotDurationMinutes: 60, Active: true,
	}); err != nil {
		t.Fatalf("create period: %v", err)
	}
	return &fixture{svc: svc, store: store, queue: queue, events: rec, client: client, wash: wash}
}

func (f *fixture) book(t *testing.T, at time.Time) model.Appointment {
	t.Helper()
	a, err := f.svc.CreateAppointment(context.Background(), CreateAppointmentInput{ClientID: f.client.ID, ServiceID: f.wash.ID, ScheduledTime: at})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return a
}

func TestCreateSchedulesReminderAndEditMovesIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	if a.Status != model.StatusPending {
		t.Fatalf("expected pending, got %s", a.Status)
	}

	key := reminders.Key(a.ClientID, a.ID)
	job, ok := f.queue.Job(key)
	if !ok || !job.FireAt.Equal(time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected reminder at 08:00Z, got %+v (queued=%v)", job, ok)
	}

	moved := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	if _, err := f.svc.PatchAppointment(ctx, a.ID, model.AppointmentPatch{ScheduledTime: &moved}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if f.queue.Len() != 1 {
		t.Fatalf("expected exactly one job, got %d", f.queue.Len())
	}
	job, _ = f.queue.Job(key)
	if !job.FireAt.Equal(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected reminder at 09:00Z, got %s", job.FireAt)
	}
}

func TestConcurrentBookingsOneWins(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	results := make([]error, 2)
	created := make([]model.Appointment, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created[i], results[i] = f.svc.CreateAppointment(context.Background(), CreateAppointmentInput{ClientID: f.client.ID, ServiceID: f.wash.ID, ScheduledTime: at})
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for i, err := range results {
		switch {
		case err == nil:
			wins++
			if created[i].Status != model.StatusPending {
				t.Fatalf("winner should be pending, got %s", created[i].Status)
			}
		case apperr.Is(err, apperr.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("expected one win and one conflict, got %d/%d", wins, conflicts)
	}
}

func TestSlotsFollowBookingLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slots, err := f.svc.ListSlots(ctx, "2024-06-10")
	if err != nil || len(slots) != 2 {
		t.Fatalf("expected two slots, got %d (%v)", len(slots), err)
	}

	a := f.book(t, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	confirmed := model.StatusConfirmed
	if _, err := f.svc.PatchAppointment(ctx, a.ID, model.AppointmentPatch{Status: &confirmed}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	slots, _ = f.svc.ListSlots(ctx, "2024-06-10")
	if slots[0].IsAvailable || !slots[1].IsAvailable {
		t.Fatalf("expected 09:00 taken and 10:00 free, got %+v", slots)
	}

	cancelled := model.StatusCancelled
	if _, err := f.svc.PatchAppointment(ctx, a.ID, model.AppointmentPatch{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	slots, _ = f.svc.ListSlots(ctx, "2024-06-10")
	if !slots[0].IsAvailable {
		t.Fatalf("expected 09:00 to be free again")
	}
	if f.queue.Len() != 0 {
		t.Fatalf("expected reminder to be cancelled, %d jobs queued", f.queue.Len())
	}
}

func TestStatusChangesEmitEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))

	confirmed := model.StatusConfirmed
	if _, err := f.svc.PatchAppointment(ctx, a.ID, model.AppointmentPatch{Status: &confirmed}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// confirmed -> rejected is not allowed.
	rejected := model.StatusRejected
	if _, err := f.svc.PatchAppointment(ctx, a.ID, model.AppointmentPatch{Status: &rejected}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got := f.events.types()
	want := []events.Type{events.TypeNewAppointment, events.TypeStatusChanged}
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
	last := f.events.events[1]
	if last.PreviousStatus != string(model.StatusPending) || last.Appointment.Status != string(model.StatusConfirmed) {
		t.Fatalf("unexpected status change payload: %+v", last)
	}
}

func TestCreateRejectsPastTime(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateAppointment(context.Background(), CreateAppointmentInput{ClientID: f.client.ID, ServiceID: f.wash.ID, ScheduledTime: now.Add(-time.Minute)})
	if !apperr.Is(err, apperr.KindInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestBookingMustLandOnAGeneratedSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, at := range []time.Time{
		time.Date(2024, 6, 10, 3, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 9, 17, 0, 0, time.UTC),
		time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC),
	} {
		_, err := f.svc.CreateAppointment(ctx, CreateAppointmentInput{ClientID: f.client.ID, ServiceID: f.wash.ID, ScheduledTime: at})
		if !apperr.Is(err, apperr.KindInvalidArgument) {
			t.Fatalf("%s: expected invalid argument, got %v", at.Format(time.RFC3339), err)
		}
	}
	slots, _ := f.svc.ListSlots(ctx, "2024-06-10")
	for _, s := range slots {
		if !s.IsAvailable {
			t.Fatalf("rejected bookings must not block %s", s.ID)
		}
	}

	a := f.book(t, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	offGrid := time.Date(2024, 6, 10, 9, 45, 0, 0, time.UTC)
	if _, err := f.svc.PatchAppointment(ctx, a.ID, model.AppointmentPatch{ScheduledTime: &offGrid}); !apperr.Is(err, apperr.KindInvalidArgument) {
		t.Fatalf("expected invalid argument on move off grid, got %v", err)
	}
	if f.queue.Len() != 1 {
		t.Fatalf("expected the reminder to stay, %d jobs queued", f.queue.Len())
	}
}

func TestCachedReadsSeeWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, _ := f.svc.ListServices(ctx)
	if len(list) != 1 {
		t.Fatalf("expected one service, got %d", len(list))
	}
	if _, err := f.svc.CreateService(ctx, model.Service{Name: "Полировка", Price: 3000}); err != nil {
		t.Fatalf("create: %v", err)
	}
	list, _ = f.svc.ListServices(ctx)
	if len(list) != 2 {
		t.Fatalf("expected cache to be invalidated, got %d services", len(list))
	}

	name := "Мойка кузова"
	if _, err := f.svc.UpdateService(ctx, f.wash.ID, model.ServicePatch{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := f.svc.GetService(ctx, f.wash.ID)
	if got.Name != name {
		t.Fatalf("expected updated name, got %q", got.Name)
	}
}

func TestDeleteAppointmentCancelsReminder(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	if err := f.svc.DeleteAppointment(context.Background(), a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("expected no queued reminders, got %d", f.queue.Len())
	}
	if _, err := f.svc.GetAppointment(context.Background(), a.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMessagesEmitEvent(t *testing.T) {
	f := newFixture(t)
	m, err := f.svc.CreateMessage(context.Background(), model.Message{UserID: f.client.ID, Text: "Когда будет готово?"})
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	got := f.events.types()
	if len(got) != 1 || got[0] != events.TypeNewMessage || f.events.events[0].Message.ID != m.ID {
		t.Fatalf("expected new_message event, got %v", got)
	}
}
