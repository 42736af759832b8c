package storage

import (
	"context"
	"strconv"

	"github.com/carbook/platform/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, user_id, is_from_admin, text, is_read, created_at`

func scanMessage(row pgx.Row) (model.Message, error) {
	var m model.Message
	var fromAdmin, read int16
	if err := row.Scan(&m.ID, &m.UserID, &fromAdmin, &m.Text, &read, &m.CreatedAt); err != nil {
		return model.Message{}, err
	}
	m.IsFromAdmin, m.IsRead = int(fromAdmin), int(read)
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func (s *Postgres) CreateMessage(ctx context.Context, m model.Message) (model.Message, error) {
	out, err := scanMessage(s.pool.QueryRow(ctx, `
		INSERT INTO messages (user_id, is_from_admin, text)
		VALUES ($1, $2, $3)
		RETURNING `+messageColumns,
		m.UserID, int16(m.IsFromAdmin), m.Text))
	return out, mapErr(err, "message")
}

// ListMessages returns newest first.
func (s *Postgres) ListMessages(ctx context.Context, f model.MessageFilter) ([]model.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE TRUE`
	var args []any
	if f.UserID != nil {
		args = append(args, *f.UserID)
		q += ` AND user_id = $` + strconv.Itoa(len(args))
	}
	if f.IsRead != nil {
		args = append(args, int16(*f.IsRead))
		q += ` AND is_read = $` + strconv.Itoa(len(args))
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	args = append(args, limit, f.Offset)
	q += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err, "message")
	}
	defer rows.Close()
	out := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, mapErr(rows.Err(), "message")
}

// UnreadCount counts unread staff-authored messages addressed to userID.
func (s *Postgres) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM messages WHERE user_id = $1 AND is_read = 0 AND is_from_admin = 1
	`, userID).Scan(&n)
	return n, mapErr(err, "message")
}

func (s *Postgres) MarkMessageRead(ctx context.Context, id int64) (model.Message, error) {
	m, err := scanMessage(s.pool.QueryRow(ctx, `UPDATE messages SET is_read = 1 WHERE id = $1 RETURNING `+messageColumns, id))
	if err != nil {
		return model.Message{}, mapErr(err, "message")
	}
	return m, nil
}

