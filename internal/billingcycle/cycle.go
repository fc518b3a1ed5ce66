// Package billingcycle computes the anchored monthly window for a
// subscription. The window is derived on every call from the subscription
// start timestamp; cycle boundaries are never persisted.
package billingcycle

import "time"

// Cycle is one billing period enclosing "now".
type Cycle struct {
	Start         time.Time `json:"cycle_start"`
	End           time.Time `json:"cycle_end"`
	DaysRemaining int       `json:"days_remaining"`
}

// Compute returns the cycle anchored to anchor's day-of-month that encloses
// now, so Start <= now < End.
//
// The anchor day is preserved across months and clipped to the last day of
// short months: a subscription started Jan 31 yields Jan 31 - Feb 28 (Feb 29
// in leap years), then Feb 28 - Mar 31, and so on.
//
// Start is truncated to midnight UTC except during the very first cycle when
// exactFirstCycle is set: if the computed start falls on the anchor's own
// calendar date, the anchor's exact instant is used instead. Stories finished
// earlier that same day, before the subscription began, then stay outside the
// window.
func Compute(anchor, now time.Time, exactFirstCycle bool) Cycle {
	a := anchor.UTC()
	n := now.UTC()
	anchorDay := a.Day()

	start := anchoredDate(n.Year(), n.Month(), anchorDay)
	if start.After(n) {
		start = anchoredDate(n.Year(), n.Month()-1, anchorDay)
	}

	if exactFirstCycle && sameDate(start, a) {
		start = a
	}

	end := anchoredDate(start.Year(), start.Month()+1, anchorDay)
	for !end.After(n) {
		end = anchoredDate(end.Year(), end.Month()+1, anchorDay)
	}

	return Cycle{
		Start:         start,
		End:           end,
		DaysRemaining: daysRemaining(end, n),
	}
}

// anchoredDate builds the midnight-UTC date for day in (year, month),
// clipping to the last day when the month is too short. time.Month values
// outside 1..12 normalize the year, so callers can pass month±1 directly.
func anchoredDate(year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func daysRemaining(end, now time.Time) int {
	remaining := end.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) != 0 {
		days++
	}
	return days
}
