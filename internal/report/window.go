package report

import (
	"time"

	"icsreport/internal/ics"
)

// Window is an inclusive calendar-date range. Callers are responsible for
// Start <= End; a reversed window is not normalized and matches nothing.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the event belongs in this window. All-day events
// are always excluded: an event whose start or end is a date-only value is
// never reported, regardless of the window. For timed events, only the
// start date is checked (inclusive on both edges), so an event starting
// inside the window but ending past it still counts — weekly-view
// semantics.
func (w Window) Contains(ev ics.Event) bool {
	if ev.Start.DateOnly || ev.End.DateOnly {
		return false
	}
	d := dateOf(ev.Start.Value)
	if d.Before(dateOf(w.Start)) {
		return false
	}
	if d.After(dateOf(w.End)) {
		return false
	}
	return true
}

// dateOf truncates a timestamp to its calendar date, discarding the zone so
// that comparisons work purely on the date the event carries.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekContaining returns the week window around t: Monday through Sunday,
// or Sunday through Saturday when weekStart is "sunday". This is the
// default report range when the caller picks none.
func WeekContaining(t time.Time, weekStart string) Window {
	offset := (int(t.Weekday()) + 6) % 7 // days since Monday
	if weekStart == "sunday" {
		offset = int(t.Weekday())
	}
	start := dateOf(t).AddDate(0, 0, -offset)
	return Window{Start: start, End: start.AddDate(0, 0, 6)}
}
