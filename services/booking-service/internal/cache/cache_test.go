package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type item struct {
	Name string `json:"name"`
}

func counting(calls *int, name string) func(context.Context) (item, error) {
	return func(context.Context) (item, error) {
		*calls++
		return item{Name: name}, nil
	}
}

func exerciseReadThrough(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	c := New(store, time.Minute, nil)

	calls := 0
	for i := 0; i < 3; i++ {
		v, err := Load(ctx, c, NamespaceServices, "list", counting(&calls, "wash"))
		if err != nil || v.Name != "wash" {
			t.Fatalf("unexpected load result %+v (%v)", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected loader to run once, ran %d times", calls)
	}

	if err := c.Invalidate(ctx, NamespaceServices); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	v, _ := Load(ctx, c, NamespaceServices, "list", counting(&calls, "polish"))
	if calls != 2 || v.Name != "polish" {
		t.Fatalf("expected reload after invalidate, calls=%d value=%+v", calls, v)
	}

	// Other namespaces are untouched.
	other := 0
	_, _ = Load(ctx, c, NamespaceClients, "list", counting(&other, "a"))
	_ = c.Invalidate(ctx, NamespaceServices)
	_, _ = Load(ctx, c, NamespaceClients, "list", counting(&other, "b"))
	if other != 1 {
		t.Fatalf("expected clients entry to survive, loader ran %d times", other)
	}
}

func TestMemoryStoreReadThrough(t *testing.T) {
	exerciseReadThrough(t, NewMemoryStore(time.Minute))
}

func TestRedisStoreReadThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	exerciseReadThrough(t, NewRedisStore(rdb))
}

func TestLoadFallsThroughWhenStoreIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	c := New(NewRedisStore(rdb), time.Minute, nil)
	mr.Close()

	calls := 0
	v, err := Load(context.Background(), c, NamespaceAppointments, "1", counting(&calls, "x"))
	if err != nil || v.Name != "x" || calls != 1 {
		t.Fatalf("expected loader result despite cache outage, got %+v calls=%d err=%v", v, calls, err)
	}
	if err := c.Invalidate(context.Background(), NamespaceAppointments); err == nil {
		t.Fatalf("expected invalidate to report the outage")
	}
}

func TestLoadDoesNotCacheErrors(t *testing.T) {
	c := New(NewMemoryStore(time.Minute), time.Minute, nil)
	boom := errors.New("boom")
	calls := 0
	load := func(context.Context) (item, error) {
		calls++
		return item{}, boom
	}
	for i := 0; i < 2; i++ {
		if _, err := Load(context.Background(), c, NamespaceClients, "7", load); !errors.Is(err, boom) {
			t.Fatalf("expected loader error, got %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected errors not to be cached, loader ran %d times", calls)
	}
}

func TestNilCacheLoads(t *testing.T) {
	var c *Cache
	calls := 0
	_, _ = Load(context.Background(), c, NamespaceServices, "list", counting(&calls, "x"))
	_, _ = Load(context.Background(), c, NamespaceServices, "list", counting(&calls, "x"))
	if calls != 2 {
		t.Fatalf("expected nil cache to always load, got %d", calls)
	}
	if err := c.Invalidate(context.Background(), NamespaceServices); err != nil {
		t.Fatalf("nil invalidate: %v", err)
	}
}
