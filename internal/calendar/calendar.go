// Package calendar provides Thai calendar helpers shared by the scoring
// and forecasting paths: long-weekend detection, Thai month names, and a
// deterministic seeded random source for reproducible fallback scores.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// ThaiMonths maps month index 1-12 to the Thai month name.
var ThaiMonths = [12]string{
	"มกราคม",
	"กุมภาพันธ์",
	"มีนาคม",
	"เมษายน",
	"พฤษภาคม",
	"มิถุนายน",
	"กรกฎาคม",
	"สิงหาคม",
	"กันยายน",
	"ตุลาคม",
	"พฤศจิกายน",
	"ธันวาคม",
}

// MonthName returns the Thai name for month 1-12.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return ThaiMonths[month-1]
}

// MonthIndex resolves a Thai month name to its 1-12 index. Exact match is
// tried first, then substring containment in either direction (the upstream
// holiday feed sometimes abbreviates month names).
func MonthIndex(name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("month name is empty")
	}
	for i, m := range ThaiMonths {
		if m == name {
			return i + 1, nil
		}
	}
	for i, m := range ThaiMonths {
		if strings.Contains(m, name) || strings.Contains(name, m) {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("unknown month name: %q", name)
}

// FormatThaiDate renders a date as "13 เมษายน 2026".
func FormatThaiDate(d time.Time) string {
	return fmt.Sprintf("%d %s %d", d.Day(), MonthName(int(d.Month())), d.Year())
}

// IsLongWeekend reports whether a holiday on the given date forms a long
// weekend: the date falls on Friday or Monday, or either adjacent day is
// Saturday or Sunday.
func IsLongWeekend(d time.Time) bool {
	switch d.Weekday() {
	case time.Friday, time.Monday:
		return true
	}
	prev := d.AddDate(0, 0, -1).Weekday()
	next := d.AddDate(0, 0, 1).Weekday()
	return isWeekendDay(prev) || isWeekendDay(next)
}

func isWeekendDay(w time.Weekday) bool {
	return w == time.Saturday || w == time.Sunday
}

// Period formats a date as the canonical YYYY-MM period key.
func Period(d time.Time) string {
	return d.Format("2006-01")
}

// ParsePeriod parses a YYYY-MM period key into its first day (UTC).
func ParsePeriod(period string) (time.Time, error) {
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse period %q: %w", period, err)
	}
	return t, nil
}

// SeededRand returns a deterministic pseudo-random value in [0, 1) derived
// from the seed string. The same seed yields the same value across runs and
// processes, which keeps fabricated scores reproducible.
//
// The hash is the 32-bit rolling form h = (h<<5) - h + c.
func SeededRand(seed string) float64 {
	var h int32
	for _, c := range seed {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return float64(v%1000000) / 1000000.0
}
