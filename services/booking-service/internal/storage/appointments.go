package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/availability"
	"github.com/carbook/platform/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `id, client_id, service_id, car_model, scheduled_time, ends_at, status, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var status string
	if err := row.Scan(&a.ID, &a.ClientID, &a.ServiceID, &a.CarModel, &a.ScheduledTime, &a.EndsAt, &status, &a.CreatedAt); err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	a.ScheduledTime = a.ScheduledTime.UTC()
	a.EndsAt = a.EndsAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	out := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// busyWindowTx resolves the service inside tx so the busy width matches the row being written.
func (s *Postgres) busyWindowTx(ctx context.Context, tx pgx.Tx, serviceID int64, start time.Time) (availability.Interval, error) {
	svc, err := scanService(tx.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, serviceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return availability.Interval{}, apperr.InvalidArgument("unknown service_id")
		}
		return availability.Interval{}, err
	}
	return availability.BusyWindow(start, svc, s.defaultDuration), nil
}

// ensureOnSlot fails unless start begins a slot of the periods active that day. The
// periods are share-locked until the transaction ends.
func ensureOnSlot(ctx context.Context, tx pgx.Tx, start time.Time) error {
	rows, err := tx.Query(ctx, `
		SELECT `+periodColumns+`
		FROM working_periods
		WHERE active AND start_date <= $1 AND end_date >= $1
		ORDER BY id
		FOR SHARE
	`, model.NewDate(start.UTC()).Time)
	if err != nil {
		return err
	}
	periods, err := collectPeriods(rows)
	if err != nil {
		return err
	}
	if _, ok := availability.SlotStartingAt(periods, start); !ok {
		return availability.ErrNotASlot
	}
	return nil
}

// ensureFree fails with Conflict when a blocking appointment other than exceptID
// intersects win. Matching rows are locked until the transaction ends.
func ensureFree(ctx context.Context, tx pgx.Tx, win availability.Interval, exceptID int64) error {
	var id int64
	err := tx.QueryRow(ctx, `
		SELECT id FROM appointments
		WHERE status NOT IN ('cancelled', 'rejected')
			AND scheduled_time < $2
			AND ends_at > $1
			AND id <> $3
		LIMIT 1
		FOR UPDATE
	`, win.Start, win.End, exceptID).Scan(&id)
	if err == nil {
		return apperr.Conflict("time slot already booked")
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

// CreateAppointment re-validates the slot inside the inserting transaction. Two
// racing requests that both pass the check are still serialised by the exclusion
// constraint, and the loser gets Conflict.
func (s *Postgres) CreateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	var out model.Appointment
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		win, err := s.busyWindowTx(ctx, tx, a.ServiceID, a.ScheduledTime)
		if err != nil {
			return err
		}
		if err := ensureOnSlot(ctx, tx, win.Start); err != nil {
			return err
		}
		if a.Status.Blocking() {
			if err := ensureFree(ctx, tx, win, 0); err != nil {
				return err
			}
		}
		out, err = scanAppointment(tx.QueryRow(ctx, `
			INSERT INTO appointments (client_id, service_id, car_model, scheduled_time, ends_at, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+appointmentColumns,
			a.ClientID, a.ServiceID, a.CarModel, win.Start, win.End, string(a.Status)))
		return err
	})
	if err != nil {
		return model.Appointment{}, mapErr(err, "appointment")
	}
	return out, nil
}

// UpdateAppointment locks the row, lets fn modify a copy, then writes it back. A change
// of time or service recomputes the busy window and re-checks it against other bookings.
func (s *Postgres) UpdateAppointment(ctx context.Context, id int64, fn func(*model.Appointment) error) (model.Appointment, model.Appointment, error) {
	var prev, next model.Appointment
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		prev, err = scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		next = prev
		if err := fn(&next); err != nil {
			return err
		}
		if !next.ScheduledTime.Equal(prev.ScheduledTime) || next.ServiceID != prev.ServiceID {
			win, err := s.busyWindowTx(ctx, tx, next.ServiceID, next.ScheduledTime)
			if err != nil {
				return err
			}
			if !next.ScheduledTime.Equal(prev.ScheduledTime) {
				if err := ensureOnSlot(ctx, tx, win.Start); err != nil {
					return err
				}
			}
			next.ScheduledTime, next.EndsAt = win.Start, win.End
			if next.Status.Blocking() {
				if err := ensureFree(ctx, tx, win, id); err != nil {
					return err
				}
			}
		}
		next, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET service_id = $2, car_model = $3, scheduled_time = $4, ends_at = $5, status = $6
			WHERE id = $1
			RETURNING `+appointmentColumns,
			id, next.ServiceID, next.CarModel, next.ScheduledTime, next.EndsAt, string(next.Status)))
		return err
	})
	if err != nil {
		return model.Appointment{}, model.Appointment{}, mapErr(err, "appointment")
	}
	return prev, next, nil
}

func (s *Postgres) GetAppointment(ctx context.Context, id int64) (model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	return a, mapErr(err, "appointment")
}

func (s *Postgres) DeleteAppointment(ctx context.Context, id int64) (model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, `DELETE FROM appointments WHERE id = $1 RETURNING `+appointmentColumns, id))
	return a, mapErr(err, "appointment")
}

func (s *Postgres) ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.ClientID != 0 {
		add("client_id = ?", f.ClientID)
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if !f.Day.IsZero() {
		add("scheduled_time >= ?", f.Day)
		add("scheduled_time < ?", f.Day.AddDate(0, 0, 1))
	}

	q := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY scheduled_time ASC, id ASC`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err, "appointment")
	}
	out, err := collectAppointments(rows)
	return out, mapErr(err, "appointment")
}

func (s *Postgres) ListBusy(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status NOT IN ('cancelled', 'rejected')
			AND scheduled_time < $2
			AND ends_at > $1
		ORDER BY scheduled_time ASC
	`, from, to)
	if err != nil {
		return nil, mapErr(err, "appointment")
	}
	out, err := collectAppointments(rows)
	return out, mapErr(err, "appointment")
}
