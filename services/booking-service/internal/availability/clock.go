package availability

import (
	"strings"
	"time"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/model"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

func ParseDate(raw string) (model.Date, error) {
	t, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return model.Date{}, apperr.InvalidArgument("date must be YYYY-MM-DD")
	}
	return model.NewDate(t), nil
}

// ParseClock parses a daily time of day ("HH:MM") into an offset from midnight.
func ParseClock(raw string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, apperr.InvalidArgument("time must be HH:MM")
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// OnDate places a daily time of day on a calendar date, in UTC.
func OnDate(day model.Date, clock time.Duration) time.Time {
	return day.Time.Add(clock)
}

// DayInterval is the whole UTC calendar day.
func DayInterval(day model.Date) Interval {
	return Interval{Start: day.Time, End: day.Time.AddDate(0, 0, 1)}
}
