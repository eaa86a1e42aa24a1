// Package forecast trains gradient-boosted regression models on historical
// fares and produces forward price curves with confidence bands.
package forecast

import (
	"time"

	"fare_analytics/internal/calendar"
)

// Feature vector layout. Every model consumes exactly these seven inputs.
const (
	featDayOfWeek       = iota // 0-6, Sunday = 0
	featMonth                  // 0-11
	featDaysUntil              // days until departure, >= 0
	featIsWeekend              // 0 or 1
	featIsHolidaySeason        // 1 when month is Dec, Jan, or Apr
	featIsHoliday              // 1 when the date is a listed holiday
	featHolidayMult            // holiday multiplier, >= 1.0
	numFeatures
)

// fixedHolidays are the recurring Thai public holidays used when the store
// has no holiday detail for a year: month/day pairs.
var fixedHolidays = [][2]int{
	{1, 1},   // New Year's Day
	{4, 6},   // Chakri Memorial Day
	{4, 13},  // Songkran
	{4, 14},  // Songkran
	{4, 15},  // Songkran
	{5, 1},   // Labour Day
	{8, 12},  // Mother's Day
	{10, 13}, // King Rama IX Memorial Day
	{10, 23}, // Chulalongkorn Day
	{12, 5},  // Father's Day
	{12, 10}, // Constitution Day
	{12, 31}, // New Year's Eve
}

// HolidayCalendar answers date-level holiday questions for the feature
// extractor. Dates are compared at UTC midnight.
type HolidayCalendar struct {
	dates map[string]bool
}

// NewHolidayCalendar builds a calendar from explicit holiday dates. When
// the list is empty the fixed recurring holidays cover [yearFrom, yearTo].
func NewHolidayCalendar(dates []time.Time, yearFrom, yearTo int) *HolidayCalendar {
	m := make(map[string]bool)
	if len(dates) > 0 {
		for _, d := range dates {
			m[d.Format("2006-01-02")] = true
		}
	} else {
		for y := yearFrom; y <= yearTo; y++ {
			for _, md := range fixedHolidays {
				m[time.Date(y, time.Month(md[0]), md[1], 0, 0, 0, 0, time.UTC).Format("2006-01-02")] = true
			}
		}
	}
	return &HolidayCalendar{dates: m}
}

// IsHoliday reports whether the date is a listed holiday.
func (c *HolidayCalendar) IsHoliday(d time.Time) bool {
	return c.dates[d.Format("2006-01-02")]
}

// nearHoliday reports whether any listed holiday falls within ±days.
func (c *HolidayCalendar) nearHoliday(d time.Time, days int) bool {
	for off := -days; off <= days; off++ {
		if c.dates[d.AddDate(0, 0, off).Format("2006-01-02")] {
			return true
		}
	}
	return false
}

// Multiplier returns the per-date holiday factor, always >= 1.0. Fixed
// festival windows dominate; otherwise proximity to any listed holiday
// lifts the price.
func (c *HolidayCalendar) Multiplier(d time.Time) float64 {
	month, day := int(d.Month()), d.Day()

	switch {
	case month == 4 && day >= 11 && day <= 17: // Songkran week
		return 1.5
	case month == 12 && day >= 20: // Christmas through New Year's Eve
		return 1.5
	case month == 1 && day <= 5: // New Year window
		return 1.4
	case (month == 1 && day >= 20) || (month == 2 && day <= 5): // Chinese New Year span
		return 1.3
	case month == 5 && day <= 15: // school break
		return 1.2
	case month == 10: // school break
		return 1.2
	}

	if c.nearHoliday(d, 3) {
		return 1.2
	}
	return 1.0
}

// Features extracts the model inputs for a departure date as seen from
// today.
func (c *HolidayCalendar) Features(date, today time.Time) []float64 {
	daysUntil := int(date.Sub(today).Hours() / 24)
	if daysUntil < 0 {
		daysUntil = 0
	}

	wd := date.Weekday()
	isWeekend := 0.0
	if wd == time.Saturday || wd == time.Sunday {
		isWeekend = 1
	}

	month := int(date.Month())
	isHolidaySeason := 0.0
	if month == 12 || month == 1 || month == 4 {
		isHolidaySeason = 1
	}

	isHoliday := 0.0
	if c.IsHoliday(date) {
		isHoliday = 1
	}

	x := make([]float64, numFeatures)
	x[featDayOfWeek] = float64(wd)
	x[featMonth] = float64(month - 1)
	x[featDaysUntil] = float64(daysUntil)
	x[featIsWeekend] = isWeekend
	x[featIsHolidaySeason] = isHolidaySeason
	x[featIsHoliday] = isHoliday
	x[featHolidayMult] = c.Multiplier(date)
	return x
}

// fallbackJitter is the deterministic jitter in [0.92, 1.08] applied to the
// historical-average fallback so the curve does not flatline.
func fallbackJitter(date time.Time, routeKey string) float64 {
	return 0.92 + calendar.SeededRand(routeKey+date.Format("2006-01-02"))*0.16
}
