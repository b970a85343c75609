package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "icsreport/internal/log"
)

// ErrMalformedDocument is returned (wrapped) when the input bytes cannot be
// parsed as an iCalendar document. Callers use errors.Is to distinguish bad
// input from other failures.
var ErrMalformedDocument = errors.New("malformed calendar document")

// ParticipationStatus is an attendee's normalized RSVP state.
type ParticipationStatus string

const (
	StatusAccepted    ParticipationStatus = "ACCEPTED"
	StatusDeclined    ParticipationStatus = "DECLINED"
	StatusTentative   ParticipationStatus = "TENTATIVE"
	StatusNeedsAction ParticipationStatus = "NEEDS-ACTION"
	StatusOther       ParticipationStatus = "OTHER"
)

// ParseParticipationStatus maps a raw PARTSTAT token onto a
// ParticipationStatus, case-insensitively. Missing or unrecognized tokens
// map to StatusOther, never to StatusAccepted.
func ParseParticipationStatus(token string) ParticipationStatus {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "ACCEPTED":
		return StatusAccepted
	case "DECLINED":
		return StatusDeclined
	case "TENTATIVE":
		return StatusTentative
	case "NEEDS-ACTION":
		return StatusNeedsAction
	default:
		return StatusOther
	}
}

// Attendee is one normalized ATTENDEE entry on an event.
type Attendee struct {
	// Email is lower-cased with any mailto: prefix stripped.
	Email string

	Status ParticipationStatus
}

// EventTime is a DTSTART/DTEND value. DateOnly marks all-day boundaries
// (VALUE=DATE or a value without a time component); for those, Value holds
// midnight of the calendar date.
type EventTime struct {
	Value    time.Time
	DateOnly bool
}

// Event is the normalized representation of a single VEVENT.
type Event struct {
	UID     string
	Summary string

	Start EventTime
	End   EventTime

	// Attendees is never nil; a VEVENT with no ATTENDEE properties yields
	// an empty slice. Scalar vs multi-valued shapes in the source are
	// flattened here so downstream code never re-checks.
	Attendees []Attendee
}

// Parse turns raw .ics bytes into normalized events, in document order.
// Only VEVENT components are yielded; calendars, timezones and alarms are
// skipped by construction. Individual events with unusable DTSTART/DTEND
// are logged and dropped without failing the whole document.
func Parse(body []byte) ([]Event, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedDocument)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	events := make([]Event, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Error("skipping unparseable vevent", perr, "uid", eventUID(ve))
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (Event, error) {
	out := Event{
		UID:       eventUID(ve),
		Attendees: parseAttendees(ve),
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	start, err := parseEventTime(ve, ical.ComponentPropertyDtStart)
	if err != nil {
		return out, fmt.Errorf("dtstart: %w", err)
	}
	end, err := parseEventTime(ve, ical.ComponentPropertyDtEnd)
	if err != nil {
		return out, fmt.Errorf("dtend: %w", err)
	}
	out.Start = start
	out.End = end

	return out, nil
}

func eventUID(ve *ical.VEvent) string {
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		return p.Value
	}
	return ""
}

// parseEventTime reads DTSTART or DTEND, tagging date-only values. A value
// is date-only when the property carries VALUE=DATE or its text has no 'T'.
func parseEventTime(ve *ical.VEvent, name ical.ComponentProperty) (EventTime, error) {
	prop := ve.GetProperty(name)
	if prop == nil || prop.Value == "" {
		return EventTime{}, errors.New("property missing")
	}

	dateOnly := !strings.Contains(prop.Value, "T")
	if params := prop.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			dateOnly = true
		}
	}

	if dateOnly {
		t, err := time.ParseInLocation("20060102", strings.TrimSpace(prop.Value), time.Local)
		if err != nil {
			return EventTime{}, err
		}
		return EventTime{Value: t, DateOnly: true}, nil
	}

	// Timed value: let the library resolve TZID/VTIMEZONE context first,
	// falling back to direct layout parsing when it cannot.
	var t time.Time
	var err error
	if name == ical.ComponentPropertyDtStart {
		t, err = ve.GetStartAt()
	} else {
		t, err = ve.GetEndAt()
	}
	if err != nil || t.IsZero() {
		t, err = parseTimeValue(prop.Value)
		if err != nil {
			return EventTime{}, err
		}
	}
	return EventTime{Value: t}, nil
}

// parseTimeValue parses the basic DATE-TIME shapes directly: UTC
// (20060102T150405Z) and floating local (20060102T150405).
func parseTimeValue(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	return time.ParseInLocation("20060102T150405", v, time.Local)
}

// parseAttendees flattens however many ATTENDEE properties the event
// carries (zero, one or many) into a normalized slice.
func parseAttendees(ve *ical.VEvent) []Attendee {
	props := ve.GetProperties(ical.ComponentPropertyAttendee)
	out := make([]Attendee, 0, len(props))

	for _, p := range props {
		email := strings.TrimSpace(p.Value)
		if strings.HasPrefix(strings.ToLower(email), "mailto:") {
			email = email[len("mailto:"):]
		}
		email = strings.ToLower(email)
		if email == "" {
			continue
		}

		status := StatusOther
		if params := p.ICalParameters; params != nil {
			if vs, ok := params["PARTSTAT"]; ok && len(vs) > 0 {
				status = ParseParticipationStatus(vs[0])
			}
		}

		out = append(out, Attendee{Email: email, Status: status})
	}

	return out
}
