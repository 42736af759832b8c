package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/carbook/platform/libs/events"
	"github.com/carbook/platform/libs/sessions"
	"github.com/carbook/platform/services/notification-service/internal/bookingapi"
	"github.com/carbook/platform/services/notification-service/internal/metrics"
	"github.com/carbook/platform/services/notification-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var nineUTC = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeAPI struct {
	appointments map[int64]bookingapi.Appointment
	clients      map[int64]bookingapi.Client
	services     map[int64]bookingapi.Service
}

func (f *fakeAPI) GetAppointment(_ context.Context, id int64) (bookingapi.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return bookingapi.Appointment{}, bookingapi.ErrNotFound
	}
	return a, nil
}

func (f *fakeAPI) GetClient(_ context.Context, id int64) (bookingapi.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return bookingapi.Client{}, bookingapi.ErrNotFound
	}
	return c, nil
}

func (f *fakeAPI) GetService(_ context.Context, id int64) (bookingapi.Service, error) {
	s, ok := f.services[id]
	if !ok {
		return bookingapi.Service{}, bookingapi.ErrNotFound
	}
	return s, nil
}

type sent struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu    sync.Mutex
	msgs  []sent
	block bool
}

func (s *fakeSender) ProviderID() string { return "fake" }

func (s *fakeSender) Send(ctx context.Context, chatID int64, text string) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, sent{chatID: chatID, text: text})
	return nil
}

func (s *fakeSender) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.msgs...)
}

type fakeStaff struct {
	sessions []sessions.Session
	err      error
}

func (f *fakeStaff) Active(context.Context) ([]sessions.Session, error) {
	return f.sessions, f.err
}

type fakeLog struct {
	mu   sync.Mutex
	rows []storage.Delivery
}

func (l *fakeLog) Insert(_ context.Context, d storage.Delivery) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, d)
	return nil
}

func ptr[T any](v T) *T { return &v }

func testAPI() *fakeAPI {
	return &fakeAPI{
		appointments: map[int64]bookingapi.Appointment{
			10: {ID: 10, ClientID: 1, ServiceID: 5, ScheduledTime: nineUTC, Status: "confirmed"},
			11: {ID: 11, ClientID: 1, ServiceID: 5, ScheduledTime: nineUTC, Status: "cancelled"},
		},
		clients: map[int64]bookingapi.Client{
			1: {ID: 1, TelegramID: ptr(int64(1001)), Name: "Иван"},
			2: {ID: 2, TelegramID: ptr(int64(1002)), Name: "Пётр", Timezone: "Asia/Novosibirsk"},
			3: {ID: 3, Name: "Без чата"},
		},
		services: map[int64]bookingapi.Service{
			5: {ID: 5, Name: "Мойка", Price: 1500},
		},
	}
}

func newConsumer(audience Audience, api BookingAPI, sender *fakeSender, staff StaffDirectory, log DeliveryLog) *Consumer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{
		Audience:        audience,
		DeliveryTimeout: time.Second,
		StaffChatIDs:    []int64{580866264},
	}, api, sender, staff, log, logger)
}

func TestParseAudience(t *testing.T) {
	if a, err := ParseAudience(" Staff "); err != nil || a != AudienceStaff {
		t.Fatalf("unexpected %q %v", a, err)
	}
	if _, err := ParseAudience("admins"); err == nil {
		t.Fatal("expected error for unknown audience")
	}
}

func TestStaffNewAppointmentUsesSessionTimezones(t *testing.T) {
	sender := &fakeSender{}
	staff := &fakeStaff{sessions: []sessions.Session{
		{ChatID: 200, Timezone: "Asia/Yekaterinburg"},
		{ChatID: 300},
		{ChatID: 200, Timezone: "Asia/Yekaterinburg"},
	}}
	c := newConsumer(AudienceStaff, testAPI(), sender, staff, nil)

	c.Handle(context.Background(), events.NewAppointmentCreated(events.Appointment{
		ID: 10, ClientID: 1, ServiceID: 5, CarModel: "Lada Vesta", ScheduledTime: nineUTC, Status: "pending",
	}))

	msgs := sender.all()
	if len(msgs) != 2 {
		t.Fatalf("expected one message per distinct chat, got %+v", msgs)
	}
	if msgs[0].chatID != 200 || !strings.Contains(msgs[0].text, "⏰ Время: 14:00") {
		t.Fatalf("expected Yekaterinburg time for chat 200, got %+v", msgs[0])
	}
	if msgs[1].chatID != 300 || !strings.Contains(msgs[1].text, "⏰ Время: 12:00") {
		t.Fatalf("expected Moscow time for chat 300, got %+v", msgs[1])
	}
	for _, want := range []string{"🆕 Новая запись!", "👤 Клиент: Иван", "🔧 Услуга: Мойка", "🚗 Автомобиль: Lada Vesta", "📅 Дата: 01.06.2024"} {
		if !strings.Contains(msgs[0].text, want) {
			t.Fatalf("message %q missing %q", msgs[0].text, want)
		}
	}
}

func TestStaffFallsBackToStaticChats(t *testing.T) {
	for name, staff := range map[string]StaffDirectory{
		"nil directory":  nil,
		"no sessions":    &fakeStaff{},
		"lookup failure": &fakeStaff{err: errors.New("redis down")},
	} {
		t.Run(name, func(t *testing.T) {
			sender := &fakeSender{}
			c := newConsumer(AudienceStaff, testAPI(), sender, staff, nil)
			c.Handle(context.Background(), events.NewMessageCreated(events.Message{ID: 1, UserID: 1, Text: "Когда готово?", CreatedAt: nineUTC}))

			msgs := sender.all()
			if len(msgs) != 1 || msgs[0].chatID != 580866264 {
				t.Fatalf("expected delivery to static chat, got %+v", msgs)
			}
			if !strings.HasPrefix(msgs[0].text, "📨 Новое сообщение от клиента!") || !strings.Contains(msgs[0].text, "📝 Текст: Когда готово?") {
				t.Fatalf("unexpected text %q", msgs[0].text)
			}
		})
	}
}

func TestAudienceFilter(t *testing.T) {
	api := testAPI()
	appt := events.Appointment{ID: 10, ClientID: 1, ServiceID: 5, ScheduledTime: nineUTC, Status: "confirmed"}

	customerSender := &fakeSender{}
	customer := newConsumer(AudienceCustomer, api, customerSender, nil, nil)
	customer.Handle(context.Background(), events.NewAppointmentCreated(appt))
	customer.Handle(context.Background(), events.NewMessageCreated(events.Message{ID: 1, UserID: 1, IsFromAdmin: 0, Text: "from client"}))
	if msgs := customerSender.all(); len(msgs) != 0 {
		t.Fatalf("customer consumer should ignore staff events, got %+v", msgs)
	}

	staffSender := &fakeSender{}
	staff := newConsumer(AudienceStaff, api, staffSender, nil, nil)
	staff.Handle(context.Background(), events.NewStatusChanged(appt, "pending"))
	staff.Handle(context.Background(), events.NewMessageCreated(events.Message{ID: 2, UserID: 1, IsFromAdmin: 1, Text: "from admin"}))
	if msgs := staffSender.all(); len(msgs) != 0 {
		t.Fatalf("staff consumer should ignore customer events, got %+v", msgs)
	}
}

func TestCustomerStatusChangedInClientTimezone(t *testing.T) {
	sender := &fakeSender{}
	c := newConsumer(AudienceCustomer, testAPI(), sender, nil, nil)

	c.Handle(context.Background(), events.NewStatusChanged(events.Appointment{
		ID: 12, ClientID: 2, ServiceID: 5, ScheduledTime: nineUTC, Status: "confirmed",
	}, "pending"))

	msgs := sender.all()
	if len(msgs) != 1 || msgs[0].chatID != 1002 {
		t.Fatalf("expected one message to client chat, got %+v", msgs)
	}
	want := "📝 Статус вашей записи изменен!\n\n📅 Дата: 01.06.2024 16:00\n🔧 Услуга: Мойка\n📊 Новый статус: ✅ подтверждена"
	if msgs[0].text != want {
		t.Fatalf("unexpected text:\n%s\nwant:\n%s", msgs[0].text, want)
	}
}

func TestCustomerReminder(t *testing.T) {
	sender := &fakeSender{}
	c := newConsumer(AudienceCustomer, testAPI(), sender, nil, nil)

	c.Handle(context.Background(), events.NewReminderDue(10, 1))
	msgs := sender.all()
	if len(msgs) != 1 || msgs[0].chatID != 1001 {
		t.Fatalf("expected reminder to client chat, got %+v", msgs)
	}
	want := "⏰ Напоминание о записи!\n\nВы записаны на услугу Мойка 01.06.2024 в 12:00"
	if msgs[0].text != want {
		t.Fatalf("unexpected text %q", msgs[0].text)
	}

	// A reminder naming another client is not delivered.
	c.Handle(context.Background(), events.NewReminderDue(10, 2))
	if got := len(sender.all()); got != 1 {
		t.Fatalf("expected mismatched reminder to be skipped, got %d messages", got)
	}
}

func TestStaffReminderIncludesPrice(t *testing.T) {
	sender := &fakeSender{}
	c := newConsumer(AudienceStaff, testAPI(), sender, nil, nil)

	c.Handle(context.Background(), events.NewReminderDue(10, 1))
	msgs := sender.all()
	if len(msgs) != 1 {
		t.Fatalf("expected one staff reminder, got %+v", msgs)
	}
	if !strings.Contains(msgs[0].text, "💰 Стоимость: 1500 руб.") || !strings.Contains(msgs[0].text, "👤 Клиент: Иван") {
		t.Fatalf("unexpected text %q", msgs[0].text)
	}
}

func TestReminderSkippedForStaleAppointments(t *testing.T) {
	sender := &fakeSender{}
	c := newConsumer(AudienceCustomer, testAPI(), sender, nil, nil)

	c.Handle(context.Background(), events.NewReminderDue(11, 1))
	c.Handle(context.Background(), events.NewReminderDue(404, 1))
	if msgs := sender.all(); len(msgs) != 0 {
		t.Fatalf("expected no reminders, got %+v", msgs)
	}
}

func TestAdminMessageToCustomer(t *testing.T) {
	sender := &fakeSender{}
	c := newConsumer(AudienceCustomer, testAPI(), sender, nil, nil)

	c.Handle(context.Background(), events.NewMessageCreated(events.Message{ID: 3, UserID: 2, IsFromAdmin: 1, Text: "Машина готова"}))
	c.Handle(context.Background(), events.NewMessageCreated(events.Message{ID: 4, UserID: 3, IsFromAdmin: 1, Text: "no chat"}))

	msgs := sender.all()
	if len(msgs) != 1 || msgs[0].chatID != 1002 || msgs[0].text != "📩 Новое сообщение от администратора:\n\nМашина готова" {
		t.Fatalf("unexpected deliveries %+v", msgs)
	}
}

func TestDeliveryTimeoutIsRecordedAsFailure(t *testing.T) {
	sender := &fakeSender{block: true}
	log := &fakeLog{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(Config{Audience: AudienceCustomer, DeliveryTimeout: 20 * time.Millisecond}, testAPI(), sender, nil, log, logger)

	failed := metrics.Deliveries.WithLabelValues(string(AudienceCustomer), storage.StatusFailed)
	before := testutil.ToFloat64(failed)

	done := make(chan struct{})
	go func() {
		c.Handle(context.Background(), events.NewReminderDue(10, 1))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was not bounded by the timeout")
	}

	if got := testutil.ToFloat64(failed) - before; got != 1 {
		t.Fatalf("expected one failed delivery counted, got %v", got)
	}
	if len(log.rows) != 1 || log.rows[0].Status != storage.StatusFailed || log.rows[0].ChatID != 1001 || log.rows[0].Provider != "fake" {
		t.Fatalf("unexpected delivery log %+v", log.rows)
	}
}

func TestInvalidEventIsDropped(t *testing.T) {
	sender := &fakeSender{}
	c := newConsumer(AudienceStaff, testAPI(), sender, nil, nil)
	c.Handle(context.Background(), events.Event{ID: "x", Type: events.TypeNewAppointment})
	if msgs := sender.all(); len(msgs) != 0 {
		t.Fatalf("expected no deliveries, got %+v", msgs)
	}
}
