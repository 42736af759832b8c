package model

import (
	"encoding/json"
	"time"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
)

const DateLayout = "2006-01-02"

// Date is a calendar date serialised as YYYY-MM-DD and held at UTC midnight.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return apperr.InvalidArgument("date must be YYYY-MM-DD")
	}
	d.Time = t
	return nil
}

type WorkingPeriod struct {
	ID                  int64  `json:"id"`
	StartDate           Date   `json:"start_date"`
	EndDate             Date   `json:"end_date"`
	DailyStartTime      string `json:"daily_start_time"`
	DailyEndTime        string `json:"daily_end_time"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
	Active              bool   `json:"active"`
}

const (
	MinSlotMinutes = 15
	MaxSlotMinutes = 240
)

func (p WorkingPeriod) Validate() error {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return apperr.InvalidArgument("start_date and end_date are required")
	}
	if p.EndDate.Before(p.StartDate.Time) {
		return apperr.InvalidArgument("end_date must not be before start_date")
	}
	start, err := time.Parse("15:04", p.DailyStartTime)
	if err != nil {
		return apperr.InvalidArgument("daily_start_time must be HH:MM")
	}
	end, err := time.Parse("15:04", p.DailyEndTime)
	if err != nil {
		return apperr.InvalidArgument("daily_end_time must be HH:MM")
	}
	if !end.After(start) {
		return apperr.InvalidArgument("daily_end_time must be after daily_start_time")
	}
	if p.SlotDurationMinutes < MinSlotMinutes || p.SlotDurationMinutes > MaxSlotMinutes {
		return apperr.InvalidArgument("slot_duration_minutes must be between 15 and 240")
	}
	return nil
}

// Covers reports whether day falls within the period's date range.
func (p WorkingPeriod) Covers(day Date) bool {
	return !day.Before(p.StartDate.Time) && !day.After(p.EndDate.Time)
}

// WorkingPeriodPatch carries a partial update; nil fields are left unchanged.
type WorkingPeriodPatch struct {
	StartDate           *Date   `json:"start_date"`
	EndDate             *Date   `json:"end_date"`
	DailyStartTime      *string `json:"daily_start_time"`
	DailyEndTime        *string `json:"daily_end_time"`
	SlotDurationMinutes *int    `json:"slot_duration_minutes"`
	Active              *bool   `json:"active"`
}

func (p WorkingPeriod) Apply(patch WorkingPeriodPatch) WorkingPeriod {
	if patch.StartDate != nil {
		p.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		p.EndDate = *patch.EndDate
	}
	if patch.DailyStartTime != nil {
		p.DailyStartTime = *patch.DailyStartTime
	}
	if patch.DailyEndTime != nil {
		p.DailyEndTime = *patch.DailyEndTime
	}
	if patch.SlotDurationMinutes != nil {
		p.SlotDurationMinutes = *patch.SlotDurationMinutes
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	return p
}

// TimeSlot is derived on every read and never stored.
type TimeSlot struct {
	ID          string    `json:"id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
}
