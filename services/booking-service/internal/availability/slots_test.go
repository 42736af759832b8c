package availability

import (
	"context"
	"testing"
	"time"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/model"
)

type stubPeriods []model.WorkingPeriod

func (s stubPeriods) ActivePeriodsOn(_ context.Context, day model.Date) ([]model.WorkingPeriod, error) {
	var out []model.WorkingPeriod
	for _, p := range s {
		if p.Active && p.Covers(day) {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubBusy []model.Appointment

func (s stubBusy) ListBusy(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range s {
		if a.ScheduledTime.Before(to) && a.EndsAt.After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func june(day, hour, minute int) time.Time {
	return time.Date(2024, 6, day, hour, minute, 0, 0, time.UTC)
}

func period(start, end string, minutes int) model.WorkingPeriod {
	return model.WorkingPeriod{
		StartDate:           model.NewDate(june(1, 0, 0)),
		EndDate:             model.NewDate(june(30, 0, 0)),
		DailyStartTime:      start,
		DailyEndTime:        end,
		SlotDurationMinutes: minutes,
		Active:              true,
	}
}

func appointmentAt(start time.Time, status model.Status) model.Appointment {
	return model.Appointment{ID: 1, ScheduledTime: start, EndsAt: start.Add(time.Hour), Status: status}
}

var beforeJune = FixedClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

func TestListSlots_NoPeriodsIsEmpty(t *testing.T) {
	g := NewGenerator(stubPeriods{period("09:00", "11:00", 60)}, stubBusy{}, beforeJune)
	slots, err := g.ListSlots(context.Background(), "2024-07-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", slots)
	}
}

func TestListSlots_InvalidDate(t *testing.T) {
	g := NewGenerator(stubPeriods{}, stubBusy{}, beforeJune)
	if _, err := g.ListSlots(context.Background(), "10.06.2024"); !apperr.Is(err, apperr.KindInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

// Scenario A: one period, 09:00-11:00, 60 minute slots.
func TestListSlots_TwoHourlySlots(t *testing.T) {
	g := NewGenerator(stubPeriods{period("09:00", "11:00", 60)}, stubBusy{}, beforeJune)
	slots, err := g.ListSlots(context.Background(), "2024-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].StartTime.Equal(june(10, 9, 0)) || !slots[0].EndTime.Equal(june(10, 10, 0)) {
		t.Fatalf("unexpected first slot %v-%v", slots[0].StartTime, slots[0].EndTime)
	}
	if !slots[1].StartTime.Equal(june(10, 10, 0)) || !slots[1].EndTime.Equal(june(10, 11, 0)) {
		t.Fatalf("unexpected second slot %v-%v", slots[1].StartTime, slots[1].EndTime)
	}
	if slots[0].ID != "2024-06-10_09-00" {
		t.Fatalf("unexpected slot id %q", slots[0].ID)
	}
	for _, s := range slots {
		if !s.IsAvailable {
			t.Fatalf("expected %s to be available", s.ID)
		}
	}
}

// Scenarios B and C: a confirmed 09:00 appointment blocks its slot, a cancelled one does not.
func TestListSlots_BusyIntervalBlocksSlot(t *testing.T) {
	periods := stubPeriods{period("09:00", "11:00", 60)}

	g := NewGenerator(periods, stubBusy{appointmentAt(june(10, 9, 0), model.StatusConfirmed)}, beforeJune)
	slots, err := g.ListSlots(context.Background(), "2024-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slots[0].IsAvailable {
		t.Fatal("expected 09:00 slot to be unavailable")
	}
	if !slots[1].IsAvailable {
		t.Fatal("expected 10:00 slot to stay available")
	}

	g = NewGenerator(periods, stubBusy{appointmentAt(june(10, 9, 0), model.StatusCancelled)}, beforeJune)
	slots, err = g.ListSlots(context.Background(), "2024-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slots[0].IsAvailable {
		t.Fatal("expected 09:00 slot to be available again after cancellation")
	}
}

func TestSlots_PastAndPresentAreUnavailable(t *testing.T) {
	day := model.NewDate(june(10, 0, 0))
	slots := Slots(day, []model.WorkingPeriod{period("09:00", "12:00", 60)}, nil, june(10, 10, 0))
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	// 09:00 is past, 10:00 starts exactly now, 11:00 is in the future.
	want := []bool{false, false, true}
	for i, s := range slots {
		if s.IsAvailable != want[i] {
			t.Fatalf("slot %s: expected available=%v", s.ID, want[i])
		}
	}
}

func TestSlots_StayInsideDailyWindow(t *testing.T) {
	day := model.NewDate(june(10, 0, 0))
	// 09:00-11:30 with 45 minute slots: 09:00, 09:45, 10:30; 11:15 would overrun.
	slots := Slots(day, []model.WorkingPeriod{period("09:00", "11:30", 45)}, nil, june(1, 0, 0))
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	windowEnd := june(10, 11, 30)
	for _, s := range slots {
		if s.EndTime.Sub(s.StartTime) != 45*time.Minute {
			t.Fatalf("slot %s has wrong length", s.ID)
		}
		if s.StartTime.Before(june(10, 9, 0)) || s.EndTime.After(windowEnd) {
			t.Fatalf("slot %s leaves the daily window", s.ID)
		}
	}
}

func TestSlots_OverlappingPeriodsAreMerged(t *testing.T) {
	day := model.NewDate(june(10, 0, 0))
	periods := []model.WorkingPeriod{
		period("09:00", "11:00", 60),
		period("10:00", "12:00", 60),
	}
	slots := Slots(day, periods, nil, june(1, 0, 0))
	if len(slots) != 3 {
		t.Fatalf("expected 3 distinct slots, got %d", len(slots))
	}
	seen := map[string]bool{}
	for _, s := range slots {
		if seen[s.ID] {
			t.Fatalf("duplicate slot %s", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestSlots_DifferentLengthsKeepPeriodOrderOnTies(t *testing.T) {
	day := model.NewDate(june(10, 0, 0))
	periods := []model.WorkingPeriod{
		period("09:00", "10:00", 30),
		period("09:00", "10:00", 60),
	}
	slots := Slots(day, periods, nil, june(1, 0, 0))
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if slots[0].EndTime.Sub(slots[0].StartTime) != 30*time.Minute {
		t.Fatal("expected the first period's 09:00 slot first")
	}
	if slots[1].EndTime.Sub(slots[1].StartTime) != 60*time.Minute {
		t.Fatal("expected the second period's 09:00 slot second")
	}
	if !slots[2].StartTime.Equal(june(10, 9, 30)) {
		t.Fatalf("expected 09:30 last, got %s", slots[2].ID)
	}

	// A later period sharing a length with an earlier one still sorts after the
	// periods given before it.
	periods = []model.WorkingPeriod{
		period("08:00", "08:30", 30),
		period("09:00", "10:00", 60),
		period("09:00", "09:30", 30),
	}
	slots = Slots(day, periods, nil, june(1, 0, 0))
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	wantEnds := []time.Time{june(10, 8, 30), june(10, 10, 0), june(10, 9, 30)}
	for i, want := range wantEnds {
		if !slots[i].EndTime.Equal(want) {
			t.Fatalf("slot %d: expected end %s, got %s", i, want.Format("15:04"), slots[i].EndTime.Format("15:04"))
		}
	}
}

func TestSlotStartingAt(t *testing.T) {
	periods := []model.WorkingPeriod{
		period("09:00", "11:00", 60),
		period("14:00", "15:00", 30),
	}
	cases := []struct {
		name    string
		start   time.Time
		ok      bool
		wantEnd time.Time
	}{
		{"on grid", june(10, 10, 0), true, june(10, 11, 0)},
		{"second period", june(10, 14, 30), true, june(10, 15, 0)},
		{"off grid", june(10, 9, 17), false, time.Time{}},
		{"before window", june(10, 3, 0), false, time.Time{}},
		{"window end", june(10, 11, 0), false, time.Time{}},
		{"no period that day", time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC), false, time.Time{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slot, ok := SlotStartingAt(periods, tc.start)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if ok && !slot.End.Equal(tc.wantEnd) {
				t.Fatalf("expected slot end %s, got %s", tc.wantEnd, slot.End)
			}
		})
	}

	moscow := time.FixedZone("MSK", 3*60*60)
	if _, ok := SlotStartingAt(periods, time.Date(2024, 6, 10, 13, 0, 0, 0, moscow)); !ok {
		t.Fatal("expected 13:00 MSK to match the 10:00 UTC slot")
	}
}

func TestMergeIntervals(t *testing.T) {
	in := []Interval{
		{Start: june(10, 12, 0), End: june(10, 13, 0)},
		{Start: june(10, 9, 0), End: june(10, 10, 0)},
		{Start: june(10, 9, 30), End: june(10, 11, 0)},
		{Start: june(10, 11, 0), End: june(10, 11, 30)},
	}
	out := MergeIntervals(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 intervals, got %v", out)
	}
	if !out[0].Start.Equal(june(10, 9, 0)) || !out[0].End.Equal(june(10, 11, 30)) {
		t.Fatalf("unexpected first interval %v", out[0])
	}
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	a := Interval{Start: june(10, 9, 0), End: june(10, 10, 0)}
	b := Interval{Start: june(10, 10, 0), End: june(10, 11, 0)}
	if Overlaps(a, b) {
		t.Fatal("adjacent intervals must not overlap")
	}
	c := Interval{Start: june(10, 9, 59), End: june(10, 10, 30)}
	if !Overlaps(a, c) || !Overlaps(c, a) {
		t.Fatal("expected overlap to be symmetric")
	}
}

func TestBusyWindowUsesServiceDuration(t *testing.T) {
	mins := 90
	w := BusyWindow(june(10, 9, 0), model.Service{DurationMinutes: &mins}, time.Hour)
	if w.Duration() != 90*time.Minute {
		t.Fatalf("expected 90m, got %s", w.Duration())
	}
	w = BusyWindow(june(10, 9, 0), model.Service{}, time.Hour)
	if w.Duration() != time.Hour {
		t.Fatalf("expected fallback 1h, got %s", w.Duration())
	}
}
