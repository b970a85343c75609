package report

import (
	"strings"

	"icsreport/internal/ics"
)

// Resolve walks an event's attendees and returns the accepted roster plus
// whether the target user accepted.
//
// The roster collects, in document order, every attendee email whose status
// is ACCEPTED. userAccepted is true when some attendee email contains the
// lowercased target email as a substring and that attendee accepted. The
// substring match tolerates aliasing (user+tag@host) at the cost of false
// positives on very short targets; it is deliberately not an exact match.
//
// Zero attendees yield an empty roster and false. targetEmail is used as
// given; no syntax validation.
func Resolve(attendees []ics.Attendee, targetEmail string) (roster []string, userAccepted bool) {
	target := strings.ToLower(targetEmail)
	roster = make([]string, 0, len(attendees))

	for _, a := range attendees {
		if a.Status != ics.StatusAccepted {
			continue
		}
		roster = append(roster, a.Email)
		if strings.Contains(a.Email, target) {
			userAccepted = true
		}
	}

	return roster, userAccepted
}
