package events

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/carbook/platform/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type KafkaConfig struct {
	Brokers string
	Topic   string
	// GroupID must be unique per consumer process: every process has to see every event.
	GroupID string
	// BatchTimeout bounds how long Publish waits for a batch to fill. Publish runs on
	// the request path, so it defaults to DefaultKafkaBatchTimeout.
	BatchTimeout time.Duration
}

const DefaultKafkaBatchTimeout = 10 * time.Millisecond

// KafkaBus carries events on a single Kafka topic. Messages are keyed by appointment id
// so events about one appointment keep their order.
type KafkaBus struct {
	cfg    KafkaConfig
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaBus(cfg KafkaConfig, logger *slog.Logger) *KafkaBus {
	if cfg.Topic == "" {
		cfg.Topic = DefaultChannel
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultKafkaBatchTimeout
	}
	return &KafkaBus{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(kafkax.SplitBrokers(cfg.Brokers)...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           cfg.BatchTimeout,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

func (b *KafkaBus) Close() error {
	return b.writer.Close()
}

func (b *KafkaBus) Publish(ctx context.Context, ev Event) error {
	msg, err := kafkaMessage(ctx, ev)
	if err != nil {
		return err
	}
	return b.writer.WriteMessages(ctx, msg)
}

func kafkaMessage(ctx context.Context, ev Event) (kafka.Message, error) {
	raw, err := Encode(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:     []byte(strconv.FormatInt(ev.AppointmentKey(), 10)),
		Value:   raw,
		Headers: kafkax.EventMeta{EventID: ev.ID, EventType: string(ev.Type)}.Headers(ctx),
	}, nil
}

func (b *KafkaBus) Subscribe(ctx context.Context, handle func(context.Context, Event)) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(b.cfg.Brokers),
		GroupID:     b.cfg.GroupID,
		Topic:       b.cfg.Topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		meta := kafkax.ExtractEventMeta(msg)
		ev, err := Decode(msg.Value)
		if err != nil {
			b.logger.Error("event dropped", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
			continue
		}

		msgCtx := kafkax.TraceContext(ctx, msg)
		spanCtx, span := otel.Tracer("kafka").Start(msgCtx, "kafka.consume",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
				attribute.String("event.type", string(ev.Type)),
			),
		)
		handle(spanCtx, ev)
		span.End()
	}
}
