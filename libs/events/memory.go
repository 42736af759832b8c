package events

import (
	"context"
	"sync"
)

// MemoryBus fans events out to in-process subscribers. A subscriber whose buffer is full
// misses the event, matching the at-most-once behaviour of the Redis transport.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
	buf  int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[chan Event]struct{}), buf: 64}
}

func (b *MemoryBus) Publish(_ context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, handle func(context.Context, Event)) error {
	ch := make(chan Event, b.buf)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-ch:
			handle(ctx, ev)
		}
	}
}

// Subscribers reports the number of active subscriptions.
func (b *MemoryBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
