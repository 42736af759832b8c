package storage

import (
	"context"

	"github.com/carbook/platform/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
)

const notificationColumns = `id, client_id, appointment_id, fire_at, payload, status, updated_at`

func scanNotification(row pgx.Row) (model.ScheduledNotification, error) {
	var n model.ScheduledNotification
	var status string
	var payload []byte
	if err := row.Scan(&n.ID, &n.ClientID, &n.AppointmentID, &n.FireAt, &payload, &status, &n.UpdatedAt); err != nil {
		return model.ScheduledNotification{}, err
	}
	n.Payload = payload
	n.Status = model.NotificationStatus(status)
	n.FireAt = n.FireAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return n, nil
}

// SaveNotification writes the ledger row for a job key, replacing any previous row.
func (s *Postgres) SaveNotification(ctx context.Context, n model.ScheduledNotification) error {
	payload := n.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_notifications (id, client_id, appointment_id, fire_at, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET fire_at = EXCLUDED.fire_at,
			payload = EXCLUDED.payload,
			status = EXCLUDED.status,
			updated_at = now()
	`, n.ID, n.ClientID, n.AppointmentID, n.FireAt, payload, string(n.Status))
	return mapErr(err, "notification")
}

func (s *Postgres) GetNotification(ctx context.Context, id string) (model.ScheduledNotification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM scheduled_notifications WHERE id = $1`, id))
	return n, mapErr(err, "notification")
}

func (s *Postgres) SetNotificationStatus(ctx context.Context, id string, status model.NotificationStatus) error {
	var got string
	err := s.pool.QueryRow(ctx, `
		UPDATE scheduled_notifications SET status = $2, updated_at = now() WHERE id = $1 RETURNING id
	`, id, string(status)).Scan(&got)
	return mapErr(err, "notification")
}

// ListNotifications returns pending jobs, optionally for one client, soonest first.
func (s *Postgres) ListNotifications(ctx context.Context, clientID int64) ([]model.ScheduledNotification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM scheduled_notifications
		WHERE status = 'pending' AND ($1::bigint = 0 OR client_id = $1)
		ORDER BY fire_at ASC
	`, clientID)
	if err != nil {
		return nil, mapErr(err, "notification")
	}
	defer rows.Close()
	out := []model.ScheduledNotification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, mapErr(rows.Err(), "notification")
}
