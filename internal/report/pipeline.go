package report

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"icsreport/internal/ics"
	appLog "icsreport/internal/log"
	"icsreport/internal/model"
)

// Extract runs the full pipeline over one calendar document: parse, filter
// by window, resolve RSVPs, build rows. Rows come back in document order;
// nothing is re-sorted. An empty result is normal, not an error — the only
// error source is a document that fails to parse (ics.ErrMalformedDocument).
func Extract(body []byte, targetEmail string, window Window) ([]model.ReportRow, error) {
	runID := uuid.NewString()

	events, err := ics.Parse(body)
	if err != nil {
		return nil, err
	}

	rows := make([]model.ReportRow, 0)
	skippedWindow := 0
	skippedRSVP := 0

	for _, ev := range events {
		if !window.Contains(ev) {
			skippedWindow++
			continue
		}
		roster, userAccepted := Resolve(ev.Attendees, targetEmail)
		if !userAccepted {
			skippedRSVP++
			continue
		}
		rows = append(rows, buildRow(ev, roster))
	}

	appLog.Info("extraction completed",
		"run_id", runID,
		"events", len(events),
		"rows", len(rows),
		"skipped_window", skippedWindow,
		"skipped_rsvp", skippedRSVP,
	)

	return rows, nil
}

// buildRow derives one report row from an in-window event the target user
// accepted.
func buildRow(ev ics.Event, roster []string) model.ReportRow {
	start := ev.Start.Value
	end := ev.End.Value

	return model.ReportRow{
		Event:             ev.Summary,
		Date:              start.Format("2006-01-02"),
		Time:              start.Format("15:04") + " - " + end.Format("15:04"),
		DurationHours:     roundHours(end.Sub(start).Hours()),
		AcceptedAttendees: strings.Join(roster, ", "),
	}
}

// roundHours rounds to 2 decimal places. Negative durations (end before
// start in the source document) are passed through as-is.
func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}
