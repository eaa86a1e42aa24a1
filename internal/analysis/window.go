package analysis

import (
	"fmt"
	"time"
)

// Window expansion constants. A narrow user window widens to a full year so
// the classifier sees every season; a wide one is padded at both ends.
const (
	narrowWindowDays  = 180
	backPadDays       = 14
	forwardPadDays    = 90
	forwardPadMonths  = 6
	maxMonthsIntoPast = 12
)

// parseUTCDate parses a YYYY-MM-DD string at UTC midnight.
func parseUTCDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ExpandWindow widens the user's [start, end] window for data loading.
//
// A window narrower than 180 days expands to 12 calendar months roughly
// centered on the user's start (three months back, the rest forward),
// clamped so it never reaches more than 12 months into the past. A wide
// window keeps its span but is extended 14 days backwards and at least six
// months forwards (the later of end+90 days and end-of-month+6 months).
func ExpandWindow(start, end, now time.Time) (time.Time, time.Time) {
	if end.Before(start) {
		end = start
	}

	if end.Sub(start) < narrowWindowDays*24*time.Hour {
		winStart := firstOfMonth(start).AddDate(0, -3, 0)
		earliest := firstOfMonth(now).AddDate(0, -maxMonthsIntoPast, 0)
		if winStart.Before(earliest) {
			winStart = earliest
		}
		winEnd := winStart.AddDate(0, 12, -1)
		return winStart, winEnd
	}

	winStart := start.AddDate(0, 0, -backPadDays)
	byDays := end.AddDate(0, 0, forwardPadDays)
	byMonths := endOfMonth(end).AddDate(0, forwardPadMonths, 0)
	winEnd := byDays
	if byMonths.After(winEnd) {
		winEnd = byMonths
	}
	return winStart, winEnd
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func endOfMonth(t time.Time) time.Time {
	return firstOfMonth(t).AddDate(0, 1, -1)
}
