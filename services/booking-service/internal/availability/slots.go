package availability

import (
	"context"
	"sort"
	"time"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/model"
)

// ErrNotASlot rejects a booking whose start is not a slot of the day's working periods.
var ErrNotASlot = apperr.InvalidArgument("scheduled_time is not a working slot")

type PeriodSource interface {
	ActivePeriodsOn(ctx context.Context, day model.Date) ([]model.WorkingPeriod, error)
}

type BusySource interface {
	// ListBusy returns appointments whose busy interval intersects [from, to).
	ListBusy(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
}

type Generator struct {
	periods PeriodSource
	busy    BusySource
	clock   Clock
}

func NewGenerator(periods PeriodSource, busy BusySource, clock Clock) *Generator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Generator{periods: periods, busy: busy, clock: clock}
}

// ListSlots returns the slots of the given YYYY-MM-DD date ordered by start time.
// A date without active working periods has no slots.
func (g *Generator) ListSlots(ctx context.Context, date string) ([]model.TimeSlot, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	periods, err := g.periods.ActivePeriodsOn(ctx, day)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return []model.TimeSlot{}, nil
	}

	dayWindow := DayInterval(day)
	appts, err := g.busy.ListBusy(ctx, dayWindow.Start, dayWindow.End)
	if err != nil {
		return nil, err
	}
	return Slots(day, periods, BusyIntervals(appts), g.clock.Now()), nil
}

// Slots is the pure part of ListSlots. Windows of periods sharing a slot length are
// merged before stepping so overlapping periods never yield the same slot twice;
// periods with different slot lengths are stepped independently. Ties on start time
// keep the order in which the periods were given.
func Slots(day model.Date, periods []model.WorkingPeriod, busy []Interval, now time.Time) []model.TimeSlot {
	grid := slotGrid(day, periods)
	slots := make([]model.TimeSlot, 0, len(grid))
	for _, slot := range grid {
		slots = append(slots, model.TimeSlot{
			ID:          SlotID(slot.Start),
			StartTime:   slot.Start,
			EndTime:     slot.End,
			IsAvailable: slot.Start.After(now) && !overlapsAny(slot.Interval, busy),
		})
	}
	return slots
}

// SlotStartingAt returns the slot the periods generate at start, if there is one.
// Bookings must land on such a slot.
func SlotStartingAt(periods []model.WorkingPeriod, start time.Time) (Interval, bool) {
	start = start.UTC()
	for _, slot := range slotGrid(model.NewDate(start), periods) {
		if slot.Start.Equal(start) {
			return slot.Interval, true
		}
	}
	return Interval{}, false
}

// gridSlot is a candidate slot tagged with the index of the first period behind it.
type gridSlot struct {
	Interval
	period int
}

// periodWindow is one period's daily window on a given day.
type periodWindow struct {
	Interval
	period int
}

// slotGrid returns every slot the periods generate on day, ordered by start time and
// then by period index.
func slotGrid(day model.Date, periods []model.WorkingPeriod) []gridSlot {
	var steps []int
	byStep := map[int][]periodWindow{}

	for idx, p := range periods {
		if !p.Active || !p.Covers(day) || p.SlotDurationMinutes <= 0 {
			continue
		}
		from, err := ParseClock(p.DailyStartTime)
		if err != nil {
			continue
		}
		to, err := ParseClock(p.DailyEndTime)
		if err != nil || to <= from {
			continue
		}
		if _, ok := byStep[p.SlotDurationMinutes]; !ok {
			steps = append(steps, p.SlotDurationMinutes)
		}
		byStep[p.SlotDurationMinutes] = append(byStep[p.SlotDurationMinutes], periodWindow{
			Interval: Interval{Start: OnDate(day, from), End: OnDate(day, to)},
			period:   idx,
		})
	}

	var out []gridSlot
	for _, step := range steps {
		length := time.Duration(step) * time.Minute
		for _, win := range mergeWindows(byStep[step]) {
			for _, slot := range candidates(win.Interval, length) {
				out = append(out, gridSlot{Interval: slot, period: win.period})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].period < out[j].period
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// mergeWindows is MergeIntervals that remembers the lowest period index folded into
// each merged window.
func mergeWindows(in []periodWindow) []periodWindow {
	if len(in) == 0 {
		return nil
	}
	sorted := make([]periodWindow, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := []periodWindow{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &out[len(out)-1]
		if !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			if cur.period < last.period {
				last.period = cur.period
			}
			continue
		}
		out = append(out, cur)
	}
	return out
}

// candidates walks the window in steps of length, keeping slots that end inside it.
func candidates(win Interval, length time.Duration) []Interval {
	var out []Interval
	for t := win.Start; !t.Add(length).After(win.End); t = t.Add(length) {
		out = append(out, Interval{Start: t, End: t.Add(length)})
	}
	return out
}

// SlotID is the date and start time of a slot, e.g. 2024-06-10_09-00.
func SlotID(start time.Time) string {
	return start.UTC().Format("2006-01-02_15-04")
}
