package domain

import "time"

// BackfillRange computes the contiguous day range that must be fetched to
// bring the ledger up to the cutoff ("yesterday" relative to today).
//
// With no persisted data the range is the lookback days ending at the cutoff.
// Otherwise it starts the day after the last persisted day. An inverted range
// (ledger already current) returns ok=false, which is a normal outcome.
func BackfillRange(lastDay time.Time, hasData bool, today time.Time, lookbackDays int) (start, end time.Time, ok bool) {
	end = today.AddDate(0, 0, -1)
	if hasData {
		start = lastDay.AddDate(0, 0, 1)
	} else {
		start = end.AddDate(0, 0, -(lookbackDays - 1))
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
