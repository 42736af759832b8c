package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/availability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type retryableErr struct{}

func (retryableErr) Error() string     { return "connection reset before send" }
func (retryableErr) SafeToRetry() bool { return true }

func TestMapErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind apperr.Kind
		msg  string
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound, "appointment not found"},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), apperr.KindNotFound, "appointment not found"},
		{"exclusion violation", &pgconn.PgError{Code: "23P01"}, apperr.KindConflict, "time slot already booked"},
		{"unique violation", &pgconn.PgError{Code: "23505"}, apperr.KindConflict, "appointment already exists"},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, apperr.KindInvalidArgument, "referenced record does not exist"},
		{"check violation", &pgconn.PgError{Code: "23514"}, apperr.KindInvalidArgument, "invalid appointment"},
		{"bad datetime", &pgconn.PgError{Code: "22007"}, apperr.KindInvalidArgument, "invalid appointment"},
		{"other sqlstate", &pgconn.PgError{Code: "42P01"}, apperr.KindInternal, "internal error"},
		{"connect failure", &pgconn.ConnectError{Config: &pgconn.Config{}}, apperr.KindTransientIO, "store unavailable"},
		{"safe to retry", retryableErr{}, apperr.KindTransientIO, "store unavailable"},
		{"plain error", errors.New("boom"), apperr.KindInternal, "internal error"},
		{"slot check passes through", availability.ErrNotASlot, apperr.KindInvalidArgument, "scheduled_time is not a working slot"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapErr(tc.err, "appointment")
			if k := apperr.KindOf(got); k != tc.kind {
				t.Fatalf("expected kind %s, got %s (%v)", tc.kind, k, got)
			}
			if m := apperr.Message(got); m != tc.msg {
				t.Fatalf("expected message %q, got %q", tc.msg, m)
			}
		})
	}

	if mapErr(nil, "appointment") != nil {
		t.Fatal("expected nil for nil")
	}
	var pgErr *pgconn.PgError
	if !errors.As(mapErr(&pgconn.PgError{Code: "23P01"}, "appointment"), &pgErr) {
		t.Fatal("expected the driver error to stay in the chain")
	}
}
