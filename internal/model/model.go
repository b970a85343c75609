package model

// ReportRow is one line of the accepted-events report. All fields are
// pre-formatted for tabular output; rows are value objects created and
// consumed within a single extraction run.
type ReportRow struct {
	// Event is the event summary, possibly empty.
	Event string `json:"event"`

	// Date is the event's start date, formatted YYYY-MM-DD.
	Date string `json:"date"`

	// Time is the clock range "HH:MM - HH:MM" (24-hour, zero-padded).
	Time string `json:"time"`

	// DurationHours is (end - start) in hours, rounded to 2 decimals.
	// Negative when the document carries end < start; the pipeline does
	// not reject such events.
	DurationHours float64 `json:"duration_hours"`

	// AcceptedAttendees is the comma-joined roster of attendee emails
	// whose participation status is ACCEPTED, in document order.
	AcceptedAttendees string `json:"accepted_attendees"`
}
