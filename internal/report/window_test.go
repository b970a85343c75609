package report

import (
	"testing"
	"time"

	"icsreport/internal/ics"
)

func timedEvent(start, end time.Time) ics.Event {
	return ics.Event{
		Start: ics.EventTime{Value: start},
		End:   ics.EventTime{Value: end},
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestWindowContains_AllDayExcluded verifies an event with a date-only
// start or end never lands in any window, even one that covers its date.
func TestWindowContains_AllDayExcluded(t *testing.T) {
	w := Window{Start: date(2025, 1, 6), End: date(2025, 1, 12)}
	inside := date(2025, 1, 7)

	cases := []struct {
		name string
		ev   ics.Event
	}{
		{"both date-only", ics.Event{
			Start: ics.EventTime{Value: inside, DateOnly: true},
			End:   ics.EventTime{Value: inside.AddDate(0, 0, 1), DateOnly: true},
		}},
		{"start date-only", ics.Event{
			Start: ics.EventTime{Value: inside, DateOnly: true},
			End:   ics.EventTime{Value: inside.Add(10 * time.Hour)},
		}},
		{"end date-only", ics.Event{
			Start: ics.EventTime{Value: inside.Add(9 * time.Hour)},
			End:   ics.EventTime{Value: inside.AddDate(0, 0, 1), DateOnly: true},
		}},
	}
	for _, tc := range cases {
		if w.Contains(tc.ev) {
			t.Errorf("%s: all-day event must be excluded", tc.name)
		}
	}
}

// TestWindowContains_InclusiveBoundaries verifies both window edges are
// inclusive and one day beyond either edge is out.
func TestWindowContains_InclusiveBoundaries(t *testing.T) {
	w := Window{Start: date(2025, 1, 6), End: date(2025, 1, 12)}

	cases := []struct {
		name  string
		start time.Time
		want  bool
	}{
		{"on window start", date(2025, 1, 6).Add(9 * time.Hour), true},
		{"day before start", date(2025, 1, 5).Add(9 * time.Hour), false},
		{"on window end", date(2025, 1, 12).Add(9 * time.Hour), true},
		{"day after end", date(2025, 1, 13).Add(9 * time.Hour), false},
	}
	for _, tc := range cases {
		ev := timedEvent(tc.start, tc.start.Add(time.Hour))
		if got := w.Contains(ev); got != tc.want {
			t.Errorf("%s: Contains = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// TestWindowContains_EndSpillsPastWindow verifies only the start date is
// checked: an event starting on the last window day and ending days later
// is still included.
func TestWindowContains_EndSpillsPastWindow(t *testing.T) {
	w := Window{Start: date(2025, 1, 6), End: date(2025, 1, 12)}
	ev := timedEvent(
		date(2025, 1, 12).Add(22*time.Hour),
		date(2025, 1, 14).Add(2*time.Hour),
	)
	if !w.Contains(ev) {
		t.Error("event starting inside the window must be included even when it ends outside")
	}
}

// TestWindowContains_ReversedWindowMatchesNothing documents that a window
// with Start > End is not normalized.
func TestWindowContains_ReversedWindowMatchesNothing(t *testing.T) {
	w := Window{Start: date(2025, 1, 12), End: date(2025, 1, 6)}
	ev := timedEvent(date(2025, 1, 8).Add(9*time.Hour), date(2025, 1, 8).Add(10*time.Hour))
	if w.Contains(ev) {
		t.Error("reversed window should match nothing")
	}
}

// TestWeekContaining covers both week-start conventions.
func TestWeekContaining(t *testing.T) {
	// 2025-01-08 is a Wednesday.
	wed := time.Date(2025, 1, 8, 15, 30, 0, 0, time.UTC)

	monday := WeekContaining(wed, "monday")
	if !monday.Start.Equal(date(2025, 1, 6)) || !monday.End.Equal(date(2025, 1, 12)) {
		t.Errorf("monday week = %v..%v", monday.Start, monday.End)
	}

	sunday := WeekContaining(wed, "sunday")
	if !sunday.Start.Equal(date(2025, 1, 5)) || !sunday.End.Equal(date(2025, 1, 11)) {
		t.Errorf("sunday week = %v..%v", sunday.Start, sunday.End)
	}
}
