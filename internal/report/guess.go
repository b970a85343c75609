package report

import "regexp"

var (
	icsExtRe = regexp.MustCompile(`(?i)\.ics$`)
	emailRe  = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)
)

// GuessEmailFromFilename extracts an email-shaped substring from a calendar
// export filename, e.g. "alice@example.com.ics" -> "alice@example.com". The
// trailing .ics extension is stripped first so it is never captured as part
// of the domain. Returns "" when nothing email-shaped is found.
//
// This is a front-end convenience for pre-filling the target email; the
// extraction pipeline never depends on it.
func GuessEmailFromFilename(name string) string {
	base := icsExtRe.ReplaceAllString(name, "")
	return emailRe.FindString(base)
}
