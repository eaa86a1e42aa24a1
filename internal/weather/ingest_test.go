package weather

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fare_analytics/internal/airports"
	"fare_analytics/internal/storage"
)

// mockStore records upserts and serves canned aggregates.
type mockStore struct {
	daily      []storage.DailyWeather
	monthly    []storage.MonthlyWeatherStat
	aggregates map[string][4]float64 // province|period -> temp, rain, humidity, days
	failDaily  bool
}

func (m *mockStore) UpsertDailyWeather(ctx context.Context, w storage.DailyWeather) error {
	if m.failDaily {
		return fmt.Errorf("store down")
	}
	m.daily = append(m.daily, w)
	return nil
}

func (m *mockStore) MonthlyWeatherAggregate(ctx context.Context, province, period string) (float64, float64, float64, int, error) {
	if agg, ok := m.aggregates[province+"|"+period]; ok {
		return agg[0], agg[1], agg[2], int(agg[3]), nil
	}
	// Derive from recorded daily rows.
	var temp, rain, hum float64
	n := 0
	for _, d := range m.daily {
		if d.Province == province && d.Date.Format("2006-01") == period {
			temp += d.TempAvg
			rain += d.Precipitation
			if d.Humidity != nil {
				hum += *d.Humidity
			}
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0, 0, nil
	}
	return temp / float64(n), rain, hum / float64(n), n, nil
}

func (m *mockStore) UpsertMonthlyWeatherStat(ctx context.Context, s storage.MonthlyWeatherStat) error {
	m.monthly = append(m.monthly, s)
	return nil
}

func TestEstimateHumidity(t *testing.T) {
	tests := []struct {
		temp, rain float64
		want       float64
	}{
		{28, 0, 70},   // neutral temperature, no rain
		{28, 5, 85},   // rain adds min(3*5, 15)
		{28, 100, 85}, // rain contribution capped at 15
		{40, 0, 52},   // hot and dry: 70 - 1.5*12
		{50, 0, 50},   // clamped low
		{10, 100, 90}, // clamped high
	}
	for _, tt := range tests {
		if got := EstimateHumidity(tt.temp, tt.rain); got != tt.want {
			t.Errorf("EstimateHumidity(%v, %v) = %v, want %v", tt.temp, tt.rain, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	d := Day{
		Date:          time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC),
		TempMax:       35.678,
		TempMin:       26.123,
		Precipitation: 1.2345,
	}
	row := Normalize("Phuket", d, storage.SourceHistorical)

	if row.TempAvg != Round2((35.678+26.123)/2) {
		t.Errorf("TempAvg = %v", row.TempAvg)
	}
	if row.TempMax != 35.68 || row.TempMin != 26.12 || row.Precipitation != 1.23 {
		t.Errorf("rounding: %+v", row)
	}
	if row.Humidity == nil {
		t.Fatal("humidity not estimated")
	}
	if *row.Humidity < 50 || *row.Humidity > 90 {
		t.Errorf("estimated humidity %v outside [50, 90]", *row.Humidity)
	}
	if row.Source != storage.SourceHistorical {
		t.Errorf("source = %v", row.Source)
	}

	// Provided humidity is kept, not estimated.
	h := 63.456
	d.Humidity = &h
	row = Normalize("Phuket", d, storage.SourceForecast)
	if *row.Humidity != 63.46 {
		t.Errorf("humidity = %v, want 63.46", *row.Humidity)
	}
}

func TestMonthlyScore(t *testing.T) {
	tests := []struct {
		name            string
		temp, rain, hum float64
		want            float64
	}{
		{"ideal dry season", 26, 20, 60, 100},
		{"hot wet season", 34, 300, 85, 0},
		{"neutral", 30, 100, 75, 50},
		{"no humidity data", 26, 20, 0, 85},
	}
	for _, tt := range tests {
		if got := MonthlyScore(tt.temp, tt.rain, tt.hum); got != tt.want {
			t.Errorf("%s: MonthlyScore(%v, %v, %v) = %v, want %v",
				tt.name, tt.temp, tt.rain, tt.hum, got, tt.want)
		}
	}
}

func TestDailyScoreBounds(t *testing.T) {
	for temp := -5.0; temp <= 45; temp += 5 {
		for rain := 0.0; rain <= 100; rain += 20 {
			for _, hum := range []*float64{nil, ptr(40.0), ptr(65.0), ptr(95.0)} {
				got := DailyScore(temp, rain, hum)
				if got < 0 || got > 100 {
					t.Fatalf("DailyScore(%v, %v) = %v outside [0, 100]", temp, rain, got)
				}
			}
		}
	}
}

func ptr(v float64) *float64 { return &v }

func TestStoreDaysForecastKeepsOnlyFutureDays(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	cutover := time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC)

	// A canned forecast spanning past, today, and future days, stored with
	// the same keep predicate RunForecast uses.
	days := []Day{
		{Date: time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC), TempMax: 33, TempMin: 26},
		{Date: time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), TempMax: 34, TempMin: 26},
		{Date: time.Date(2026, 4, 11, 0, 0, 0, 0, time.UTC), TempMax: 35, TempMin: 27},
		{Date: time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC), TempMax: 36, TempMin: 27},
		{Date: time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC), TempMax: 36, TempMin: 27}, // duplicate
	}

	store := &mockStore{}
	in := &Ingestor{
		Store:   store,
		Cutover: cutover,
		Now:     func() time.Time { return now },
		Sleep:   func(time.Duration) {},
	}

	prov := airports.Province{Name: "Phuket", Latitude: 7.88, Longitude: 98.39}
	n, err := in.storeDays(context.Background(), prov.Name, days, storage.SourceForecast, func(d Day) bool {
		return d.Date.After(cutover) && d.Date.After(midnight(now))
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("stored %d rows, want 2 (strictly after today, deduplicated)", n)
	}
	for _, row := range store.daily {
		if !row.Date.After(midnight(now)) {
			t.Errorf("stored non-future date %s", row.Date.Format("2006-01-02"))
		}
		if row.Source != storage.SourceForecast {
			t.Errorf("source = %v", row.Source)
		}
	}
}

func TestRecomputeMonthly(t *testing.T) {
	store := &mockStore{
		aggregates: map[string][4]float64{
			"Phuket|2026-04": {29.5, 120, 74, 30},
		},
	}
	in := &Ingestor{Store: store, Now: time.Now, Sleep: func(time.Duration) {}}

	if err := in.RecomputeMonthly(context.Background(), "Phuket", "2026-04"); err != nil {
		t.Fatal(err)
	}
	if len(store.monthly) != 1 {
		t.Fatalf("monthly stats written: %d", len(store.monthly))
	}
	s := store.monthly[0]
	if s.Period != "2026-04" || s.DaysCount != 30 {
		t.Errorf("stat = %+v", s)
	}
	if s.WeatherScore != MonthlyScore(29.5, 120, 74) {
		t.Errorf("score = %v", s.WeatherScore)
	}
}

func TestRecomputeMonthlySkipsEmptyPeriod(t *testing.T) {
	store := &mockStore{}
	in := &Ingestor{Store: store, Now: time.Now, Sleep: func(time.Duration) {}}
	if err := in.RecomputeMonthly(context.Background(), "Phuket", "2031-01"); err != nil {
		t.Fatal(err)
	}
	if len(store.monthly) != 0 {
		t.Error("stat written for empty period")
	}
}
