package events

import (
	"context"
	"log/slog"

	otelx "github.com/carbook/platform/libs/otel"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisBus carries events over Redis PUBLISH/SUBSCRIBE. Redis pub/sub has no replay,
// so events published while a consumer is disconnected are not delivered to it.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisBus(rdb *redis.Client, channel string, logger *slog.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{rdb: rdb, channel: channel, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	carrier := otelx.CarrierFromContext(ctx)
	if carrier.Traceparent != "" {
		ev.Trace = &carrier
	}
	raw, err := Encode(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, handle func(context.Context, Event)) error {
	ps := b.rdb.Subscribe(ctx, b.channel)
	defer ps.Close()

	// Wait for the subscription confirmation so a broken connection is reported here.
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { _ = ps.Close() })
	defer stop()

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		ev, err := Decode([]byte(msg.Payload))
		if err != nil {
			b.logger.Error("event dropped", "err", err, "channel", msg.Channel)
			continue
		}
		b.deliver(ctx, ev, handle)
	}
}

func (b *RedisBus) deliver(ctx context.Context, ev Event, handle func(context.Context, Event)) {
	if ev.Trace != nil {
		ctx = ev.Trace.Extract(ctx)
	}
	ctx, span := otel.Tracer("events").Start(ctx, "events.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "redis"),
			attribute.String("messaging.destination", b.channel),
			attribute.String("event.type", string(ev.Type)),
		),
	)
	defer span.End()
	handle(ctx, ev)
}
