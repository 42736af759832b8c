// Package consumer turns events from the notifications channel into chat messages for
// one audience. A process serves either staff or customers; both read the same channel
// and each drops the event types that are not addressed to it.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carbook/platform/libs/events"
	"github.com/carbook/platform/libs/sessions"
	"github.com/carbook/platform/services/notification-service/internal/bookingapi"
	"github.com/carbook/platform/services/notification-service/internal/delivery"
	"github.com/carbook/platform/services/notification-service/internal/metrics"
	"github.com/carbook/platform/services/notification-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Audience string

const (
	AudienceStaff    Audience = "staff"
	AudienceCustomer Audience = "customer"
)

func ParseAudience(s string) (Audience, error) {
	switch a := Audience(strings.ToLower(strings.TrimSpace(s))); a {
	case AudienceStaff, AudienceCustomer:
		return a, nil
	default:
		return "", fmt.Errorf("audience must be %q or %q (got %q)", AudienceStaff, AudienceCustomer, s)
	}
}

const DefaultTimezone = "Europe/Moscow"

type BookingAPI interface {
	GetAppointment(ctx context.Context, id int64) (bookingapi.Appointment, error)
	GetClient(ctx context.Context, id int64) (bookingapi.Client, error)
	GetService(ctx context.Context, id int64) (bookingapi.Service, error)
}

// StaffDirectory lists the staff sessions that should receive staff notifications.
type StaffDirectory interface {
	Active(ctx context.Context) ([]sessions.Session, error)
}

type DeliveryLog interface {
	Insert(ctx context.Context, d storage.Delivery) error
}

type Config struct {
	Audience        Audience
	DefaultLocation *time.Location
	DeliveryTimeout time.Duration
	// StaffChatIDs receive staff notifications while no staff session is active.
	StaffChatIDs []int64
}

type Consumer struct {
	cfg     Config
	api     BookingAPI
	sender  delivery.Sender
	staff   StaffDirectory
	log     DeliveryLog
	logger  *slog.Logger
	nowFunc func() time.Time
}

// New builds a consumer. staff and log may be nil.
func New(cfg Config, api BookingAPI, sender delivery.Sender, staff StaffDirectory, log DeliveryLog, logger *slog.Logger) *Consumer {
	if cfg.DefaultLocation == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
		cfg.DefaultLocation = loc
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	return &Consumer{
		cfg:     cfg,
		api:     api,
		sender:  sender,
		staff:   staff,
		log:     log,
		logger:  logger.With("audience", string(cfg.Audience)),
		nowFunc: time.Now,
	}
}

type recipient struct {
	chatID int64
	loc    *time.Location
}

// errSkip marks an event that is valid but has nobody to notify.
type errSkip struct{ reason string }

func (e errSkip) Error() string { return "skipped: " + e.reason }

func skip(reason string) error { return errSkip{reason: reason} }

// Handle is the subscription callback. It never fails: errors end processing of this
// event only and are logged.
func (c *Consumer) Handle(ctx context.Context, ev events.Event) {
	metrics.EventsReceived.WithLabelValues(string(ev.Type)).Inc()
	if err := ev.Validate(); err != nil {
		metrics.EventsSkipped.WithLabelValues("invalid").Inc()
		c.logger.Warn("invalid event dropped", "event_id", ev.ID, "err", err)
		return
	}
	if ev.Trace != nil {
		ctx = ev.Trace.Extract(ctx)
	}
	ctx, span := otel.Tracer("notification-service/consumer").Start(ctx, "notification.handle")
	span.SetAttributes(
		attribute.String("event.type", string(ev.Type)),
		attribute.String("event.id", ev.ID),
		attribute.String("audience", string(c.cfg.Audience)),
	)
	defer span.End()

	err := events.Dispatch(ctx, ev, c)
	var s errSkip
	switch {
	case err == nil:
	case errors.As(err, &s):
		metrics.EventsSkipped.WithLabelValues(s.reason).Inc()
		c.logger.Debug("event skipped", "event_id", ev.ID, "type", string(ev.Type), "reason", s.reason)
	default:
		metrics.EventsSkipped.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("event handling failed", "event_id", ev.ID, "type", string(ev.Type), "err", err)
	}
}

func (c *Consumer) OnNewAppointment(ctx context.Context, ev events.Event) error {
	if c.cfg.Audience != AudienceStaff {
		return skip("audience")
	}
	a := ev.Appointment
	client := c.clientOrUnknown(ctx, a.ClientID)
	svc := c.serviceOrUnknown(ctx, a.ServiceID)
	return c.deliverStaff(ctx, ev, func(loc *time.Location) string {
		return renderNewAppointment(client, svc, a.CarModel, a.ScheduledTime, loc)
	})
}

func (c *Consumer) OnStatusChanged(ctx context.Context, ev events.Event) error {
	if c.cfg.Audience != AudienceCustomer {
		return skip("audience")
	}
	a := ev.Appointment
	to, err := c.customer(ctx, a.ClientID)
	if err != nil {
		return err
	}
	svc := c.serviceOrUnknown(ctx, a.ServiceID)
	c.deliver(ctx, ev, to, renderStatusChanged(svc, a.Status, a.ScheduledTime, to.loc))
	return nil
}

func (c *Consumer) OnReminderDue(ctx context.Context, ev events.Event) error {
	appt, err := c.api.GetAppointment(ctx, ev.AppointmentID)
	if errors.Is(err, bookingapi.ErrNotFound) {
		return skip("appointment_gone")
	}
	if err != nil {
		return fmt.Errorf("resolve appointment %d: %w", ev.AppointmentID, err)
	}
	if appt.Status != "pending" && appt.Status != "confirmed" {
		return skip("appointment_final")
	}
	svc := c.serviceOrUnknown(ctx, appt.ServiceID)

	switch c.cfg.Audience {
	case AudienceStaff:
		client := c.clientOrUnknown(ctx, appt.ClientID)
		return c.deliverStaff(ctx, ev, func(loc *time.Location) string {
			return renderStaffReminder(client, svc, appt.ScheduledTime, loc)
		})
	case AudienceCustomer:
		if ev.ClientID != 0 && ev.ClientID != appt.ClientID {
			return skip("client_mismatch")
		}
		to, err := c.customer(ctx, appt.ClientID)
		if err != nil {
			return err
		}
		c.deliver(ctx, ev, to, renderCustomerReminder(svc, appt.ScheduledTime, to.loc))
		return nil
	}
	return skip("audience")
}

func (c *Consumer) OnNewMessage(ctx context.Context, ev events.Event) error {
	m := ev.Message
	switch {
	case c.cfg.Audience == AudienceStaff && m.IsFromAdmin == 0:
		client := c.clientOrUnknown(ctx, m.UserID)
		at := m.CreatedAt
		if at.IsZero() {
			at = c.nowFunc()
		}
		return c.deliverStaff(ctx, ev, func(loc *time.Location) string {
			return renderClientMessage(client, m.Text, at, loc)
		})
	case c.cfg.Audience == AudienceCustomer && m.IsFromAdmin == 1:
		to, err := c.customer(ctx, m.UserID)
		if err != nil {
			return err
		}
		c.deliver(ctx, ev, to, renderAdminMessage(m.Text))
		return nil
	}
	return skip("audience")
}

func (c *Consumer) customer(ctx context.Context, clientID int64) (recipient, error) {
	client, err := c.api.GetClient(ctx, clientID)
	if errors.Is(err, bookingapi.ErrNotFound) {
		return recipient{}, skip("client_gone")
	}
	if err != nil {
		return recipient{}, fmt.Errorf("resolve client %d: %w", clientID, err)
	}
	if client.TelegramID == nil || *client.TelegramID == 0 {
		return recipient{}, skip("no_chat")
	}
	return recipient{chatID: *client.TelegramID, loc: c.location(client.Timezone)}, nil
}

func (c *Consumer) staffRecipients(ctx context.Context) []recipient {
	var out []recipient
	if c.staff != nil {
		active, err := c.staff.Active(ctx)
		if err != nil {
			c.logger.Warn("staff session lookup failed; using static chat ids", "err", err)
		}
		seen := make(map[int64]bool, len(active))
		for _, s := range active {
			if s.ChatID == 0 || seen[s.ChatID] {
				continue
			}
			seen[s.ChatID] = true
			out = append(out, recipient{chatID: s.ChatID, loc: s.Location(c.cfg.DefaultLocation)})
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, id := range c.cfg.StaffChatIDs {
		out = append(out, recipient{chatID: id, loc: c.cfg.DefaultLocation})
	}
	return out
}

func (c *Consumer) location(tz string) *time.Location {
	if tz == "" {
		return c.cfg.DefaultLocation
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		c.logger.Warn("unknown timezone; using default", "timezone", tz)
		return c.cfg.DefaultLocation
	}
	return loc
}

func (c *Consumer) clientOrUnknown(ctx context.Context, id int64) bookingapi.Client {
	client, err := c.api.GetClient(ctx, id)
	if err != nil {
		c.logger.Warn("client lookup failed", "client_id", id, "err", err)
		return bookingapi.Client{ID: id}
	}
	return client
}

func (c *Consumer) serviceOrUnknown(ctx context.Context, id int64) bookingapi.Service {
	svc, err := c.api.GetService(ctx, id)
	if err != nil {
		c.logger.Warn("service lookup failed", "service_id", id, "err", err)
		return bookingapi.Service{ID: id}
	}
	return svc
}

func (c *Consumer) deliverStaff(ctx context.Context, ev events.Event, render func(*time.Location) string) error {
	to := c.staffRecipients(ctx)
	if len(to) == 0 {
		return skip("no_staff")
	}
	for _, r := range to {
		c.deliver(ctx, ev, r, render(r.loc))
	}
	return nil
}

// deliver sends one message bounded by the delivery timeout. A failed delivery is
// logged, counted and recorded but not returned.
func (c *Consumer) deliver(ctx context.Context, ev events.Event, to recipient, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.DeliveryTimeout)
	err := c.sender.Send(sendCtx, to.chatID, text)
	cancel()

	status := storage.StatusSent
	errText := ""
	if err != nil {
		status = storage.StatusFailed
		errText = err.Error()
		c.logger.Error("delivery failed", "event_id", ev.ID, "type", string(ev.Type), "chat_id", to.chatID, "provider", c.sender.ProviderID(), "err", err)
	} else {
		c.logger.Info("notification delivered", "event_id", ev.ID, "type", string(ev.Type), "chat_id", to.chatID)
	}
	metrics.Deliveries.WithLabelValues(string(c.cfg.Audience), status).Inc()

	if c.log != nil {
		logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if lerr := c.log.Insert(logCtx, storage.Delivery{
			EventID:   ev.ID,
			EventType: string(ev.Type),
			Audience:  string(c.cfg.Audience),
			ChatID:    to.chatID,
			Provider:  c.sender.ProviderID(),
			Status:    status,
			Error:     errText,
		}); lerr != nil {
			c.logger.Warn("failed to record delivery", "event_id", ev.ID, "err", lerr)
		}
	}
}
