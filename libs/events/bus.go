package events

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Publisher sends an event to every current subscriber of the channel. It does not wait
// for subscribers to process it.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Subscriber delivers events to handle until ctx is done or the transport fails.
// Subscribe returns ctx.Err() on shutdown and the transport error otherwise.
type Subscriber interface {
	Subscribe(ctx context.Context, handle func(context.Context, Event)) error
}

type RunOptions struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Run keeps a subscription alive for the life of ctx. Transport errors are logged and
// followed by a resubscribe after a capped exponential backoff.
func Run(ctx context.Context, logger *slog.Logger, sub Subscriber, handle func(context.Context, Event), opts RunOptions) {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * time.Second
	}

	backoff := opts.MinBackoff
	for {
		started := time.Now()
		err := sub.Subscribe(ctx, handle)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("subscription closed")
		}
		// A subscription that stayed up for a while starts the backoff over.
		if time.Since(started) > opts.MaxBackoff {
			backoff = opts.MinBackoff
		}
		logger.Error("event subscription lost", "err", err, "retry_in", backoff.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > opts.MaxBackoff {
			backoff = opts.MaxBackoff
		}
	}
}
