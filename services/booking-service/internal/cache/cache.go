// Package cache is the read-through cache in front of catalog and appointment reads.
//
// Keys are grouped in namespaces. Every entry key embeds the namespace version, so
// Invalidate only has to bump the version for all older entries to become unreachable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/carbook/platform/services/booking-service/internal/metrics"
)

const (
	NamespaceServices       = "services"
	NamespaceClients        = "clients"
	NamespaceAppointments   = "appointments"
	NamespaceWorkingPeriods = "working_periods"
)

type Cache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func New(store Store, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, ttl: ttl, logger: logger}
}

func versionKey(ns string) string {
	return "cache:" + ns + ":version"
}

func (c *Cache) entryKey(ctx context.Context, ns, key string) (string, error) {
	v, err := c.store.Counter(ctx, versionKey(ns))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("cache:%s:v%d:%s", ns, v, key), nil
}

// Invalidate drops every entry of ns. A failure is logged and counted; the caller's
// mutation has already been committed at that point.
func (c *Cache) Invalidate(ctx context.Context, ns string) error {
	if c == nil {
		return nil
	}
	if _, err := c.store.Incr(ctx, versionKey(ns)); err != nil {
		metrics.CacheInvalidationFailures.WithLabelValues(ns).Inc()
		c.logger.Error("cache invalidation failed", "namespace", ns, "err", err)
		return err
	}
	return nil
}

// Load returns the cached value for (ns, key) or calls load and stores its result.
// A failing cache never fails the read; load is used instead. A nil Cache always loads.
func Load[T any](ctx context.Context, c *Cache, ns, key string, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}

	full, err := c.entryKey(ctx, ns, key)
	if err == nil {
		raw, ok, getErr := c.store.Get(ctx, full)
		switch {
		case getErr != nil:
			err = getErr
		case ok:
			var v T
			if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
				metrics.CacheRequests.WithLabelValues("hit").Inc()
				return v, nil
			}
		}
	}
	if err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn("cache read failed", "namespace", ns, "err", err)
	} else {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
	}

	v, loadErr := load(ctx)
	if loadErr != nil || err != nil {
		return v, loadErr
	}
	raw, jsonErr := json.Marshal(v)
	if jsonErr != nil {
		return v, nil
	}
	if setErr := c.store.Set(ctx, full, raw, c.ttl); setErr != nil {
		c.logger.Warn("cache write failed", "namespace", ns, "err", setErr)
	}
	return v, nil
}
