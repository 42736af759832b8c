package model

import (
	"time"

	"github.com/carbook/platform/libs/events"
)

type Message struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	IsFromAdmin int       `json:"is_from_admin"`
	Text        string    `json:"text"`
	IsRead      int       `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m Message) Event() events.Message {
	return events.Message{
		ID:          m.ID,
		UserID:      m.UserID,
		IsFromAdmin: m.IsFromAdmin,
		Text:        m.Text,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

type MessageFilter struct {
	UserID *int64
	IsRead *int
	Limit  int
	Offset int
}
