package report

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"icsreport/internal/ics"
)

func doc(eventBlocks ...[]string) []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
	}
	for _, b := range eventBlocks {
		lines = append(lines, b...)
	}
	lines = append(lines, "END:VCALENDAR", "")
	return []byte(strings.Join(lines, "\r\n"))
}

func event(uid string, props ...string) []string {
	lines := []string{"BEGIN:VEVENT", "UID:" + uid}
	lines = append(lines, props...)
	return append(lines, "END:VEVENT")
}

// week of 2025-01-06 (Mon) .. 2025-01-12 (Sun)
var testWindow = Window{
	Start: date(2025, 1, 6),
	End:   date(2025, 1, 12),
}

// TestExtract_Scenario runs the end-to-end case: two timed events, one
// inside the window with the target accepted, one outside; exactly one row
// comes back with the target in the roster.
func TestExtract_Scenario(t *testing.T) {
	body := doc(
		event("in-window",
			"SUMMARY:Planning",
			"DTSTART:20250107T090000Z",
			"DTEND:20250107T103000Z",
			"ATTENDEE;PARTSTAT=ACCEPTED:mailto:bob@x.com",
			"ATTENDEE;PARTSTAT=ACCEPTED:mailto:alice@x.com",
			"ATTENDEE;PARTSTAT=DECLINED:mailto:carol@x.com",
		),
		event("out-of-window",
			"SUMMARY:Retro",
			"DTSTART:20250120T090000Z",
			"DTEND:20250120T100000Z",
			"ATTENDEE;PARTSTAT=ACCEPTED:mailto:bob@x.com",
		),
	)

	rows, err := Extract(body, "bob@x.com", testWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if row.Event != "Planning" {
		t.Errorf("event = %q", row.Event)
	}
	if row.Date != "2025-01-07" {
		t.Errorf("date = %q", row.Date)
	}
	if row.Time != "09:00 - 10:30" {
		t.Errorf("time = %q", row.Time)
	}
	if row.DurationHours != 1.5 {
		t.Errorf("duration = %v, want 1.5", row.DurationHours)
	}
	if !strings.Contains(row.AcceptedAttendees, "bob@x.com") {
		t.Errorf("roster %q must contain the target", row.AcceptedAttendees)
	}
	if row.AcceptedAttendees != "bob@x.com, alice@x.com" {
		t.Errorf("roster = %q", row.AcceptedAttendees)
	}
}

// TestExtract_EmptyResultIsNotAnError covers documents with only all-day
// events and documents where the target never accepted.
func TestExtract_EmptyResultIsNotAnError(t *testing.T) {
	allDayOnly := doc(event("all-day",
		"SUMMARY:Offsite",
		"DTSTART;VALUE=DATE:20250107",
		"DTEND;VALUE=DATE:20250108",
		"ATTENDEE;PARTSTAT=ACCEPTED:mailto:bob@x.com",
	))
	neverAccepted := doc(event("declined",
		"SUMMARY:Planning",
		"DTSTART:20250107T090000Z",
		"DTEND:20250107T100000Z",
		"ATTENDEE;PARTSTAT=DECLINED:mailto:bob@x.com",
	))

	for name, body := range map[string][]byte{"all-day only": allDayOnly, "never accepted": neverAccepted} {
		rows, err := Extract(body, "bob@x.com", testWindow)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
		}
		if len(rows) != 0 {
			t.Errorf("%s: expected empty result, got %d rows", name, len(rows))
		}
	}
}

// TestExtract_DeterministicDocumentOrder verifies rows follow document
// order (not a date sort) and repeated runs agree.
func TestExtract_DeterministicDocumentOrder(t *testing.T) {
	// Later date appears first in the document and must stay first.
	body := doc(
		event("later-date",
			"SUMMARY:Friday review",
			"DTSTART:20250110T140000Z",
			"DTEND:20250110T150000Z",
			"ATTENDEE;PARTSTAT=ACCEPTED:mailto:bob@x.com",
		),
		event("earlier-date",
			"SUMMARY:Tuesday sync",
			"DTSTART:20250107T090000Z",
			"DTEND:20250107T100000Z",
			"ATTENDEE;PARTSTAT=ACCEPTED:mailto:bob@x.com",
		),
	)

	first, err := Extract(body, "bob@x.com", testWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(first))
	}
	if first[0].Event != "Friday review" || first[1].Event != "Tuesday sync" {
		t.Errorf("rows out of document order: %q, %q", first[0].Event, first[1].Event)
	}

	second, err := Extract(body, "bob@x.com", testWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs must yield identical output")
	}
}

// TestExtract_NegativeDurationPassesThrough documents the permissive
// handling of end < start.
func TestExtract_NegativeDurationPassesThrough(t *testing.T) {
	body := doc(event("inverted",
		"SUMMARY:Inverted",
		"DTSTART:20250107T100000Z",
		"DTEND:20250107T090000Z",
		"ATTENDEE;PARTSTAT=ACCEPTED:mailto:bob@x.com",
	))

	rows, err := Extract(body, "bob@x.com", testWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].DurationHours != -1 {
		t.Errorf("duration = %v, want -1", rows[0].DurationHours)
	}
}

// TestExtract_MalformedDocument propagates the parser sentinel untouched.
func TestExtract_MalformedDocument(t *testing.T) {
	_, err := Extract([]byte("not a calendar"), "bob@x.com", testWindow)
	if !errors.Is(err, ics.ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument, got %v", err)
	}
}

// TestExtract_DurationRounding checks the two-decimal rounding on an
// awkward duration (50 minutes = 0.83).
func TestExtract_DurationRounding(t *testing.T) {
	body := doc(event("odd-duration",
		"SUMMARY:Interview",
		"DTSTART:20250107T090000Z",
		"DTEND:20250107T095000Z",
		"ATTENDEE;PARTSTAT=ACCEPTED:mailto:bob@x.com",
	))

	rows, err := Extract(body, "bob@x.com", testWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].DurationHours != 0.83 {
		t.Errorf("duration = %v, want 0.83", rows[0].DurationHours)
	}
}
