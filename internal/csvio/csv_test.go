package csvio

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"fare_analytics/internal/holiday"
	"fare_analytics/internal/storage"
)

func TestWeatherRoundTrip(t *testing.T) {
	h := 71.25
	rows := []WeatherRow{
		{
			Province:      "Phuket",
			Date:          time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC),
			TempMax:       34.5,
			TempMin:       26.1,
			Precipitation: 0,
			Humidity:      &h,
			Source:        storage.SourceHistorical,
		},
		{
			Province:      "Chiang Mai",
			Date:          time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC),
			TempMax:       36,
			TempMin:       22,
			Precipitation: 12.4,
			Source:        storage.SourceForecast,
		},
	}

	var buf bytes.Buffer
	if err := WriteWeather(&buf, rows); err != nil {
		t.Fatal(err)
	}
	got, err := ReadWeather(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != len(rows) {
		t.Fatalf("rows = %d, want %d", len(got), len(rows))
	}
	for i := range rows {
		a, b := rows[i], got[i]
		if a.Province != b.Province || !a.Date.Equal(b.Date) ||
			a.TempMax != b.TempMax || a.TempMin != b.TempMin ||
			a.Precipitation != b.Precipitation || a.Source != b.Source {
			t.Errorf("row %d: %+v != %+v", i, a, b)
		}
		if (a.Humidity == nil) != (b.Humidity == nil) {
			t.Errorf("row %d: humidity presence differs", i)
		}
		if a.Humidity != nil && *a.Humidity != *b.Humidity {
			t.Errorf("row %d: humidity %v != %v", i, *a.Humidity, *b.Humidity)
		}
	}
}

// Quoted fields with embedded commas and doubled quotes survive the round
// trip.
func TestHolidayRoundTripQuoting(t *testing.T) {
	entries := []holiday.Entry{
		{Date: time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC), Name: "วันสงกรานต์", Category: holiday.CategoryNational},
		{Date: time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC), Name: `Christmas, the "big" one`, Category: holiday.CategoryRegional},
	}

	var buf bytes.Buffer
	if err := WriteHolidays(&buf, entries); err != nil {
		t.Fatal(err)
	}
	got, err := ReadHolidays(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("entries = %d", len(got))
	}
	for i := range entries {
		if entries[i].Name != got[i].Name || entries[i].Category != got[i].Category || !entries[i].Date.Equal(got[i].Date) {
			t.Errorf("entry %d: %+v != %+v", i, entries[i], got[i])
		}
	}
}

func TestReadWeatherRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"bad header", "a,b,c,d,e,f,g\n"},
		{"bad date", "province,date,temp_max,temp_min,precipitation,humidity,source\nPhuket,notadate,30,25,0,,historical\n"},
		{"bad source", "province,date,temp_max,temp_min,precipitation,humidity,source\nPhuket,2026-04-13,30,25,0,,guess\n"},
		{"bad number", "province,date,temp_max,temp_min,precipitation,humidity,source\nPhuket,2026-04-13,hot,25,0,,historical\n"},
		{"empty", ""},
	}
	for _, tt := range tests {
		if _, err := ReadWeather(strings.NewReader(tt.csv)); err == nil {
			t.Errorf("%s: accepted", tt.name)
		}
	}
}

func TestReadHolidaysRejectsUnknownCategory(t *testing.T) {
	csv := "date,name,category\n2026-04-13,Songkran,imaginary\n"
	if _, err := ReadHolidays(strings.NewReader(csv)); err == nil {
		t.Error("unknown category accepted")
	}
}

func TestReadHolidaysDefaultsCategory(t *testing.T) {
	csv := "date,name,category\n2026-04-13,Songkran,\n"
	got, err := ReadHolidays(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Category != holiday.CategoryNational {
		t.Errorf("category = %q", got[0].Category)
	}
}
