package domain

import (
	"strings"
	"time"
)

// DayFormat is the ledger's day key layout: DD/MM/YYYY.
const DayFormat = "02/01/2006"

// FormatDay renders a time as a ledger day key.
func FormatDay(t time.Time) string {
	return t.Format(DayFormat)
}

// ParseDay parses a DD/MM/YYYY day key in the given location.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DayFormat, strings.TrimSpace(s), loc)
}

// DayOf truncates an instant to midnight of its calendar day in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Today returns the current calendar day (midnight) in loc.
func Today(loc *time.Location) time.Time {
	return DayOf(clock.Now(), loc)
}

// DaysBetween enumerates every calendar day from start to end inclusive.
// Returns nil when start is after end.
func DaysBetween(start, end time.Time) []time.Time {
	if start.After(end) {
		return nil
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// ParseInstant parses a provider timestamp. Stormglass returns UTC instants
// ending in "Z"; explicit offsets are accepted as well.
func ParseInstant(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(s))
}
