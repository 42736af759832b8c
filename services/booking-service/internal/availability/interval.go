package availability

import (
	"time"

	"github.com/carbook/platform/services/booking-service/internal/model"
)

// Interval is half-open: [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

func (i Interval) UTC() Interval {
	return Interval{Start: i.Start.UTC(), End: i.End.UTC()}
}

// Overlaps: [a.Start,a.End) overlaps [b.Start,b.End) iff a.Start < b.End && b.Start < a.End.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func overlapsAny(slot Interval, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(slot, b) {
			return true
		}
	}
	return false
}

// MergeIntervals returns the union of in as sorted, non-overlapping intervals.
// Touching intervals are joined.
func MergeIntervals(in []Interval) []Interval {
	windows := make([]periodWindow, len(in))
	for i, iv := range in {
		windows[i] = periodWindow{Interval: iv}
	}
	merged := mergeWindows(windows)
	if merged == nil {
		return nil
	}
	out := make([]Interval, len(merged))
	for i, w := range merged {
		out[i] = w.Interval
	}
	return out
}

// BusyWindow is the time an appointment starting at start occupies for svc.
// Booking validation and slot generation both go through it.
func BusyWindow(start time.Time, svc model.Service, fallback time.Duration) Interval {
	start = start.UTC()
	return Interval{Start: start, End: start.Add(svc.Duration(fallback))}
}

// BusyIntervals converts stored appointments into busy intervals, skipping the ones
// whose status frees their time.
func BusyIntervals(appts []model.Appointment) []Interval {
	out := make([]Interval, 0, len(appts))
	for _, a := range appts {
		if !a.Status.Blocking() {
			continue
		}
		out = append(out, Interval{Start: a.ScheduledTime, End: a.EndsAt}.UTC())
	}
	return out
}
