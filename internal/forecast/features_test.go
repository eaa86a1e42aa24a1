package forecast

import (
	"testing"
	"time"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestMultiplierWindows(t *testing.T) {
	cal := NewHolidayCalendar(nil, 2026, 2026)
	tests := []struct {
		name string
		d    time.Time
		want float64
	}{
		{"songkran", date(2026, 4, 13), 1.5},
		{"songkran edge", date(2026, 4, 17), 1.5},
		{"christmas new year", date(2026, 12, 25), 1.5},
		{"new year window", date(2026, 1, 3), 1.4},
		{"chinese new year january", date(2026, 1, 28), 1.3},
		{"chinese new year february", date(2026, 2, 3), 1.3},
		{"may school break", date(2026, 5, 10), 1.2},
		{"october school break", date(2026, 10, 20), 1.2},
		{"near labour day", date(2026, 5, 1).AddDate(0, 0, 2), 1.2},
		{"plain mid june", date(2026, 6, 17), 1.0},
	}
	for _, tt := range tests {
		if got := cal.Multiplier(tt.d); got != tt.want {
			t.Errorf("%s (%s): Multiplier = %v, want %v", tt.name, tt.d.Format("2006-01-02"), got, tt.want)
		}
	}
}

// The holiday multiplier is never below 1.0 on any day of the year.
func TestMultiplierFloor(t *testing.T) {
	cal := NewHolidayCalendar(nil, 2026, 2026)
	d := date(2026, 1, 1)
	for i := 0; i < 365; i++ {
		day := d.AddDate(0, 0, i)
		if got := cal.Multiplier(day); got < 1.0 {
			t.Fatalf("Multiplier(%s) = %v < 1.0", day.Format("2006-01-02"), got)
		}
	}
}

func TestFeatures(t *testing.T) {
	cal := NewHolidayCalendar(nil, 2026, 2026)
	today := date(2026, 4, 1)

	// April 13 2026 is a Monday, Songkran, holiday season.
	x := cal.Features(date(2026, 4, 13), today)
	if len(x) != numFeatures {
		t.Fatalf("feature width = %d", len(x))
	}
	if x[featDayOfWeek] != float64(time.Monday) {
		t.Errorf("dayOfWeek = %v", x[featDayOfWeek])
	}
	if x[featMonth] != 3 {
		t.Errorf("month = %v, want 3 (zero-based April)", x[featMonth])
	}
	if x[featDaysUntil] != 12 {
		t.Errorf("daysUntil = %v, want 12", x[featDaysUntil])
	}
	if x[featIsWeekend] != 0 {
		t.Errorf("isWeekend = %v", x[featIsWeekend])
	}
	if x[featIsHolidaySeason] != 1 {
		t.Errorf("isHolidaySeason = %v", x[featIsHolidaySeason])
	}
	if x[featIsHoliday] != 1 {
		t.Errorf("isHoliday = %v, want 1 for Songkran", x[featIsHoliday])
	}
	if x[featHolidayMult] != 1.5 {
		t.Errorf("holidayMult = %v", x[featHolidayMult])
	}

	// Dates in the past clamp daysUntil at zero.
	x = cal.Features(date(2026, 3, 20), today)
	if x[featDaysUntil] != 0 {
		t.Errorf("past daysUntil = %v, want 0", x[featDaysUntil])
	}

	// A Saturday outside any window.
	x = cal.Features(date(2026, 6, 20), today)
	if x[featIsWeekend] != 1 || x[featIsHolidaySeason] != 0 {
		t.Errorf("weekend features = %v", x)
	}
}

func TestFallbackJitterDeterministicAndBounded(t *testing.T) {
	d := date(2026, 6, 17)
	a := fallbackJitter(d, "BKK>HKT:round-trip")
	b := fallbackJitter(d, "BKK>HKT:round-trip")
	if a != b {
		t.Error("jitter not deterministic")
	}
	if a < 0.92 || a > 1.08 {
		t.Errorf("jitter %v outside [0.92, 1.08]", a)
	}
	if fallbackJitter(d, "CNX>HKT:round-trip") == a {
		t.Error("jitter identical across routes")
	}
}
