package storage

import (
	"context"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
)

const serviceColumns = `id, name, description, price, duration_minutes`

func scanService(row pgx.Row) (model.Service, error) {
	var svc model.Service
	err := row.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Price, &svc.DurationMinutes)
	return svc, err
}

func (s *Postgres) CreateService(ctx context.Context, svc model.Service) (model.Service, error) {
	out, err := scanService(s.pool.QueryRow(ctx, `
		INSERT INTO services (name, description, price, duration_minutes)
		VALUES ($1, $2, $3, $4)
		RETURNING `+serviceColumns,
		svc.Name, svc.Description, svc.Price, svc.DurationMinutes))
	return out, mapErr(err, "service")
}

func (s *Postgres) GetService(ctx context.Context, id int64) (model.Service, error) {
	svc, err := scanService(s.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	return svc, mapErr(err, "service")
}

func (s *Postgres) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY id`)
	if err != nil {
		return nil, mapErr(err, "service")
	}
	defer rows.Close()
	out := []model.Service{}
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, mapErr(rows.Err(), "service")
}

func (s *Postgres) UpdateService(ctx context.Context, id int64, fn func(*model.Service) error) (model.Service, error) {
	var out model.Service
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanService(tx.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(&cur); err != nil {
			return err
		}
		out, err = scanService(tx.QueryRow(ctx, `
			UPDATE services SET name = $2, description = $3, price = $4, duration_minutes = $5
			WHERE id = $1
			RETURNING `+serviceColumns,
			id, cur.Name, cur.Description, cur.Price, cur.DurationMinutes))
		return err
	})
	return out, mapErr(err, "service")
}

// DeleteService refuses to remove a service that appointments still reference.
func (s *Postgres) DeleteService(ctx context.Context, id int64) error {
	return s.deleteReferenced(ctx, id, "service",
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE service_id = $1)`,
		`DELETE FROM services WHERE id = $1`)
}

func (s *Postgres) deleteReferenced(ctx context.Context, id int64, what, refQuery, deleteQuery string) error {
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		var referenced bool
		if err := tx.QueryRow(ctx, refQuery, id).Scan(&referenced); err != nil {
			return err
		}
		if referenced {
			return apperr.Conflict(what + " is referenced by appointments")
		}
		tag, err := tx.Exec(ctx, deleteQuery, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if apperr.Is(mapErr(err, what), apperr.KindInvalidArgument) {
		// A foreign key violation on delete means a concurrent insert referenced the row.
		return apperr.Conflict(what + " is referenced by appointments")
	}
	return mapErr(err, what)
}

const clientColumns = `id, telegram_id, name, phone_number, timezone`

func scanClient(row pgx.Row) (model.Client, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.TelegramID, &c.Name, &c.PhoneNumber, &c.Timezone)
	return c, err
}

func (s *Postgres) CreateClient(ctx context.Context, c model.Client) (model.Client, error) {
	out, err := scanClient(s.pool.QueryRow(ctx, `
		INSERT INTO clients (telegram_id, name, phone_number, timezone)
		VALUES ($1, $2, $3, $4)
		RETURNING `+clientColumns,
		c.TelegramID, c.Name, c.PhoneNumber, c.Timezone))
	return out, mapErr(err, "client")
}

func (s *Postgres) GetClient(ctx context.Context, id int64) (model.Client, error) {
	c, err := scanClient(s.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	return c, mapErr(err, "client")
}

func (s *Postgres) FindClient(ctx context.Context, q model.ClientLookup) (model.Client, error) {
	var row pgx.Row
	switch {
	case q.TelegramID != nil:
		row = s.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE telegram_id = $1`, *q.TelegramID)
	case q.PhoneNumber != "":
		row = s.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE phone_number = $1`, q.PhoneNumber)
	default:
		return model.Client{}, apperr.InvalidArgument("telegram_id or phone_number is required")
	}
	c, err := scanClient(row)
	return c, mapErr(err, "client")
}

func (s *Postgres) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY id`)
	if err != nil {
		return nil, mapErr(err, "client")
	}
	defer rows.Close()
	out := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err(), "client")
}

func (s *Postgres) UpdateClient(ctx context.Context, id int64, fn func(*model.Client) error) (model.Client, error) {
	var out model.Client
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanClient(tx.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(&cur); err != nil {
			return err
		}
		out, err = scanClient(tx.QueryRow(ctx, `
			UPDATE clients SET telegram_id = $2, name = $3, phone_number = $4, timezone = $5
			WHERE id = $1
			RETURNING `+clientColumns,
			id, cur.TelegramID, cur.Name, cur.PhoneNumber, cur.Timezone))
		return err
	})
	return out, mapErr(err, "client")
}

func (s *Postgres) DeleteClient(ctx context.Context, id int64) error {
	return s.deleteReferenced(ctx, id, "client",
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE client_id = $1)`,
		`DELETE FROM clients WHERE id = $1`)
}

const periodColumns = `id, start_date, end_date, daily_start_time, daily_end_time, slot_duration_minutes, active`

func scanPeriod(row pgx.Row) (model.WorkingPeriod, error) {
	var p model.WorkingPeriod
	if err := row.Scan(&p.ID, &p.StartDate.Time, &p.EndDate.Time, &p.DailyStartTime, &p.DailyEndTime, &p.SlotDurationMinutes, &p.Active); err != nil {
		return model.WorkingPeriod{}, err
	}
	p.StartDate = model.NewDate(p.StartDate.Time)
	p.EndDate = model.NewDate(p.EndDate.Time)
	return p, nil
}

func collectPeriods(rows pgx.Rows) ([]model.WorkingPeriod, error) {
	defer rows.Close()
	out := []model.WorkingPeriod{}
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateWorkingPeriod(ctx context.Context, p model.WorkingPeriod) (model.WorkingPeriod, error) {
	out, err := scanPeriod(s.pool.QueryRow(ctx, `
		INSERT INTO working_periods (start_date, end_date, daily_start_time, daily_end_time, slot_duration_minutes, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+periodColumns,
		p.StartDate.Time, p.EndDate.Time, p.DailyStartTime, p.DailyEndTime, p.SlotDurationMinutes, p.Active))
	return out, mapErr(err, "working period")
}

func (s *Postgres) GetWorkingPeriod(ctx context.Context, id int64) (model.WorkingPeriod, error) {
	p, err := scanPeriod(s.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM working_periods WHERE id = $1`, id))
	return p, mapErr(err, "working period")
}

func (s *Postgres) ListWorkingPeriods(ctx context.Context) ([]model.WorkingPeriod, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+periodColumns+` FROM working_periods ORDER BY start_date, id`)
	if err != nil {
		return nil, mapErr(err, "working period")
	}
	out, err := collectPeriods(rows)
	return out, mapErr(err, "working period")
}

// ActivePeriodsOn returns active periods covering day in insertion order.
func (s *Postgres) ActivePeriodsOn(ctx context.Context, day model.Date) ([]model.WorkingPeriod, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+periodColumns+`
		FROM working_periods
		WHERE active AND start_date <= $1 AND end_date >= $1
		ORDER BY id
	`, day.Time)
	if err != nil {
		return nil, mapErr(err, "working period")
	}
	out, err := collectPeriods(rows)
	return out, mapErr(err, "working period")
}

func (s *Postgres) UpdateWorkingPeriod(ctx context.Context, id int64, fn func(*model.WorkingPeriod) error) (model.WorkingPeriod, error) {
	var out model.WorkingPeriod
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanPeriod(tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM working_periods WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(&cur); err != nil {
			return err
		}
		out, err = scanPeriod(tx.QueryRow(ctx, `
			UPDATE working_periods
			SET start_date = $2, end_date = $3, daily_start_time = $4, daily_end_time = $5, slot_duration_minutes = $6, active = $7
			WHERE id = $1
			RETURNING `+periodColumns,
			id, cur.StartDate.Time, cur.EndDate.Time, cur.DailyStartTime, cur.DailyEndTime, cur.SlotDurationMinutes, cur.Active))
		return err
	})
	return out, mapErr(err, "working period")
}

func (s *Postgres) DeleteWorkingPeriod(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM working_periods WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "working period")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("working period not found")
	}
	return nil
}

