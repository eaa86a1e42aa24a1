// Package csvio reads and writes the CSV interchange formats used by the
// import tools. Files are RFC-4180 style: comma separated, LF rows, quotes
// escaped by doubling.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"fare_analytics/internal/holiday"
	"fare_analytics/internal/storage"
)

// Daily weather CSV columns.
var weatherHeader = []string{"province", "date", "temp_max", "temp_min", "precipitation", "humidity", "source"}

// Holiday CSV columns.
var holidayHeader = []string{"date", "name", "category"}

// WeatherRow is one parsed daily-weather CSV row before normalization.
type WeatherRow struct {
	Province      string
	Date          time.Time
	TempMax       float64
	TempMin       float64
	Precipitation float64
	Humidity      *float64
	Source        storage.WeatherSource
}

// ReadWeather parses daily-weather rows. The first record must be the
// header.
func ReadWeather(r io.Reader) ([]WeatherRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(weatherHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read weather csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("weather csv: empty file")
	}
	if err := checkHeader(records[0], weatherHeader); err != nil {
		return nil, err
	}

	rows := make([]WeatherRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		line := i + 2
		date, err := time.Parse("2006-01-02", rec[1])
		if err != nil {
			return nil, fmt.Errorf("weather csv line %d: bad date %q", line, rec[1])
		}
		tempMax, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("weather csv line %d: bad temp_max %q", line, rec[2])
		}
		tempMin, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("weather csv line %d: bad temp_min %q", line, rec[3])
		}
		precip, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("weather csv line %d: bad precipitation %q", line, rec[4])
		}
		var humidity *float64
		if rec[5] != "" {
			h, err := strconv.ParseFloat(rec[5], 64)
			if err != nil {
				return nil, fmt.Errorf("weather csv line %d: bad humidity %q", line, rec[5])
			}
			humidity = &h
		}
		source, err := storage.ParseWeatherSource(rec[6])
		if err != nil {
			return nil, fmt.Errorf("weather csv line %d: %w", line, err)
		}

		rows = append(rows, WeatherRow{
			Province:      rec[0],
			Date:          date,
			TempMax:       tempMax,
			TempMin:       tempMin,
			Precipitation: precip,
			Humidity:      humidity,
			Source:        source,
		})
	}
	return rows, nil
}

// WriteWeather formats daily-weather rows with the canonical header.
func WriteWeather(w io.Writer, rows []WeatherRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(weatherHeader); err != nil {
		return fmt.Errorf("write weather header: %w", err)
	}
	for _, r := range rows {
		humidity := ""
		if r.Humidity != nil {
			humidity = strconv.FormatFloat(*r.Humidity, 'f', -1, 64)
		}
		rec := []string{
			r.Province,
			r.Date.Format("2006-01-02"),
			strconv.FormatFloat(r.TempMax, 'f', -1, 64),
			strconv.FormatFloat(r.TempMin, 'f', -1, 64),
			strconv.FormatFloat(r.Precipitation, 'f', -1, 64),
			humidity,
			string(r.Source),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write weather row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadHolidays parses holiday rows. The first record must be the header.
func ReadHolidays(r io.Reader) ([]holiday.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(holidayHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read holiday csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("holiday csv: empty file")
	}
	if err := checkHeader(records[0], holidayHeader); err != nil {
		return nil, err
	}

	entries := make([]holiday.Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		line := i + 2
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, fmt.Errorf("holiday csv line %d: bad date %q", line, rec[0])
		}
		category := rec[2]
		switch category {
		case holiday.CategoryNational, holiday.CategoryRegional:
		case "":
			category = holiday.CategoryNational
		default:
			return nil, fmt.Errorf("holiday csv line %d: unknown category %q", line, rec[2])
		}
		entries = append(entries, holiday.Entry{Date: date, Name: rec[1], Category: category})
	}
	return entries, nil
}

// WriteHolidays formats holiday entries with the canonical header.
func WriteHolidays(w io.Writer, entries []holiday.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(holidayHeader); err != nil {
		return fmt.Errorf("write holiday header: %w", err)
	}
	for _, e := range entries {
		rec := []string{e.Date.Format("2006-01-02"), e.Name, e.Category}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write holiday row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func checkHeader(got, want []string) error {
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			return fmt.Errorf("csv header mismatch: got %v, want %v", got, want)
		}
	}
	return nil
}
