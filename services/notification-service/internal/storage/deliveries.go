package storage

import (
	"context"

	"github.com/carbook/platform/libs/db"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type Delivery struct {
	EventID   string
	EventType string
	Audience  string
	ChatID    int64
	Provider  string
	Status    string
	Error     string
}

const schema = `
CREATE TABLE IF NOT EXISTS notification_deliveries (
	id         BIGSERIAL PRIMARY KEY,
	event_id   TEXT NOT NULL,
	event_type TEXT NOT NULL,
	audience   TEXT NOT NULL,
	chat_id    BIGINT NOT NULL,
	provider   TEXT NOT NULL,
	status     TEXT NOT NULL CHECK (status IN ('sent', 'failed')),
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS notification_deliveries_event_idx ON notification_deliveries (event_id);
`

// Repository is an append-only log of delivery attempts.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

func (r *Repository) Insert(ctx context.Context, d Delivery) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_deliveries (event_id, event_type, audience, chat_id, provider, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.EventID, d.EventType, d.Audience, d.ChatID, d.Provider, d.Status, d.Error)
	return err
}
