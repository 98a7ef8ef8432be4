package domain

import (
	"sort"
	"time"
)

// MergeWindow combines persisted history with a freshly aggregated window into
// one ascending, deduplicated-by-day sequence. History is restricted to days
// strictly before windowStart; where both sides supply the same day the window
// row wins outright (no field-level blending).
func MergeWindow(history, window []DailyRecord, windowStart time.Time, loc *time.Location) []DailyRecord {
	byDay := make(map[string]DailyRecord)
	for _, rec := range history {
		day, err := ParseDay(rec.Day, loc)
		if err != nil || !day.Before(windowStart) {
			continue
		}
		byDay[rec.Day] = rec
	}
	for _, rec := range window {
		byDay[rec.Day] = rec
	}

	merged := make([]DailyRecord, 0, len(byDay))
	for _, rec := range byDay {
		merged = append(merged, rec)
	}
	sort.Slice(merged, func(i, j int) bool {
		di, erri := ParseDay(merged[i].Day, loc)
		dj, errj := ParseDay(merged[j].Day, loc)
		if erri != nil || errj != nil {
			return merged[i].Day < merged[j].Day
		}
		return di.Before(dj)
	})
	return merged
}
