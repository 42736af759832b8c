// Package storage is the PostgreSQL implementation of the booking stores.
package storage

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/carbook/platform/libs/db"
	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schema string

type Postgres struct {
	pool *db.Pool
	// defaultDuration is the busy width of services without their own duration.
	defaultDuration time.Duration
}

func NewPostgres(pool *db.Pool, defaultDuration time.Duration) *Postgres {
	return &Postgres{pool: pool, defaultDuration: defaultDuration}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// mapErr translates driver errors into apperr kinds. what names the entity for NotFound.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(what + " not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01":
			return apperr.Wrap(apperr.KindConflict, "time slot already booked", err)
		case "23505":
			return apperr.Wrap(apperr.KindConflict, what+" already exists", err)
		case "23503":
			return apperr.Wrap(apperr.KindInvalidArgument, "referenced record does not exist", err)
		case "23514", "22007", "22008":
			return apperr.Wrap(apperr.KindInvalidArgument, "invalid "+what, err)
		}
		return err
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) || isConnErr(err) {
		return apperr.Transient("store unavailable", err)
	}
	return err
}

func isConnErr(err error) bool {
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
