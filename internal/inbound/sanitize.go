package inbound

import (
	"regexp"
	"strings"
)

var (
	pureDigitsRe = regexp.MustCompile(`^[0-9]+$`)
	timestampRe  = regexp.MustCompile(`(?i)^\s*\d{1,2}:\d{2}(:\d{2})?\s*(am|pm)?\s*$`)
	weekdayRe    = regexp.MustCompile(`(?i)^\s*(mon|tue|wed|thu|fri|sat|sun)(day|sday|nesday|rsday|urday)?\s*$`)
)

// Sanitize strips UI chrome line by line: pure-digit strings (unread
// counters), strings of length <= 1, timestamp/weekday strings, and
// strings equal to the window title. Returns the empty string when
// nothing survives.
func Sanitize(text, windowTitle string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	title := strings.TrimSpace(windowTitle)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if len(trimmed) <= 1 {
			continue
		}
		if pureDigitsRe.MatchString(trimmed) {
			continue
		}
		if timestampRe.MatchString(trimmed) {
			continue
		}
		if weekdayRe.MatchString(trimmed) {
			continue
		}
		if title != "" && strings.EqualFold(trimmed, title) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "\n")
}
