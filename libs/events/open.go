package events

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

type Bus interface {
	Publisher
	Subscriber
}

type BusConfig struct {
	// Kind is "redis" (default), "kafka" or "memory".
	Kind         string
	Channel      string
	KafkaBrokers string
	KafkaGroupID string
}

// Open builds the bus selected by cfg.Kind. The returned close function releases the
// transport's writers; it does not close rdb.
func Open(cfg BusConfig, rdb *redis.Client, logger *slog.Logger) (Bus, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "redis":
		if rdb == nil {
			return nil, noop, fmt.Errorf("redis event bus requires a redis client")
		}
		return NewRedisBus(rdb, cfg.Channel, logger), noop, nil
	case "kafka":
		if strings.TrimSpace(cfg.KafkaBrokers) == "" {
			return nil, noop, fmt.Errorf("kafka event bus requires KAFKA_BROKERS")
		}
		bus := NewKafkaBus(KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.Channel, GroupID: cfg.KafkaGroupID}, logger)
		return bus, bus.Close, nil
	case "memory":
		return NewMemoryBus(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown event bus %q", cfg.Kind)
	}
}
