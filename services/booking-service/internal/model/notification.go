package model

import (
	"encoding/json"
	"time"
)

type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationFired     NotificationStatus = "fired"
	NotificationCancelled NotificationStatus = "cancelled"
)

// ScheduledNotification is the ledger row for one reminder job. ID is the job key, so
// there is at most one row per (client, appointment).
type ScheduledNotification struct {
	ID            string             `json:"id"`
	ClientID      int64              `json:"client_id"`
	AppointmentID int64              `json:"appointment_id"`
	FireAt        time.Time          `json:"scheduled_time"`
	Payload       json.RawMessage    `json:"payload"`
	Status        NotificationStatus `json:"status"`
	UpdatedAt     time.Time          `json:"updated_at"`
}
