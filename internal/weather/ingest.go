package weather

import (
	"context"
	"fmt"
	"log"
	"time"

	"fare_analytics/internal/airports"
	"fare_analytics/internal/storage"
)

// Store is the slice of the storage layer the ingestor writes through.
type Store interface {
	UpsertDailyWeather(ctx context.Context, w storage.DailyWeather) error
	MonthlyWeatherAggregate(ctx context.Context, province, period string) (avgTemp, rainTotal, avgHumidity float64, days int, err error)
	UpsertMonthlyWeatherStat(ctx context.Context, s storage.MonthlyWeatherStat) error
}

// Pauses between upstream calls. The archive API tolerates short gaps
// between month chunks; the forecast API wants a full second between
// provinces.
const (
	chunkPause    = 200 * time.Millisecond
	provincePause = time.Second
)

// Ingestor runs the weather ingestion flows. Historical rows are
// authoritative up to and including the cutover date; forecast rows only
// cover dates strictly after both the cutover and today.
type Ingestor struct {
	Store    Store
	Archive  *ArchiveClient
	Forecast *ForecastClient
	Cutover  time.Time

	// Now and Sleep are injectable for tests.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// NewIngestor wires an ingestor with real clock and sleep.
func NewIngestor(store Store, archive *ArchiveClient, forecast *ForecastClient, cutover time.Time) *Ingestor {
	return &Ingestor{
		Store:    store,
		Archive:  archive,
		Forecast: forecast,
		Cutover:  cutover,
		Now:      time.Now,
		Sleep:    time.Sleep,
	}
}

// RunHistorical ingests archival weather for the provinces over [start,
// end], one request per (province, calendar month). Failures on one chunk
// are logged and skipped. Returns the number of rows written.
func (in *Ingestor) RunHistorical(ctx context.Context, provinces []airports.Province, start, end time.Time) (int, error) {
	if end.After(in.Cutover) {
		end = in.Cutover
	}

	written := 0
	for _, prov := range provinces {
		periods := make(map[string]bool)
		for chunkStart := firstOfMonth(start); !chunkStart.After(end); chunkStart = chunkStart.AddDate(0, 1, 0) {
			chunkEnd := chunkStart.AddDate(0, 1, -1)
			if chunkEnd.After(end) {
				chunkEnd = end
			}
			lo := chunkStart
			if lo.Before(start) {
				lo = start
			}

			days, err := in.Archive.FetchRange(ctx, prov.Latitude, prov.Longitude, lo, chunkEnd)
			if err != nil {
				log.Printf("weather: historical %s %s: %v (skipping chunk)", prov.Name, chunkStart.Format("2006-01"), err)
				in.Sleep(chunkPause)
				continue
			}

			n, err := in.storeDays(ctx, prov.Name, days, storage.SourceHistorical, nil)
			if err != nil {
				return written, err
			}
			written += n
			for _, d := range days {
				periods[d.Date.Format("2006-01")] = true
			}
			in.Sleep(chunkPause)
		}

		for period := range periods {
			if err := in.RecomputeMonthly(ctx, prov.Name, period); err != nil {
				log.Printf("weather: recompute %s %s: %v", prov.Name, period, err)
			}
		}
	}
	return written, nil
}

// RunForecast ingests the short-range forecast for the provinces, keeping
// only dates strictly after the cutover and strictly after today. Failures
// on one province are logged and skipped.
func (in *Ingestor) RunForecast(ctx context.Context, provinces []airports.Province) (int, error) {
	today := midnight(in.Now())

	written := 0
	for i, prov := range provinces {
		if i > 0 {
			in.Sleep(provincePause)
		}

		days, err := in.Forecast.Fetch(ctx, prov.Latitude, prov.Longitude)
		if err != nil {
			log.Printf("weather: forecast %s: %v (skipping province)", prov.Name, err)
			continue
		}

		keep := func(d Day) bool {
			return d.Date.After(in.Cutover) && d.Date.After(today)
		}
		n, err := in.storeDays(ctx, prov.Name, days, storage.SourceForecast, keep)
		if err != nil {
			return written, err
		}
		written += n

		periods := make(map[string]bool)
		for _, d := range days {
			if keep(d) {
				periods[d.Date.Format("2006-01")] = true
			}
		}
		for period := range periods {
			if err := in.RecomputeMonthly(ctx, prov.Name, period); err != nil {
				log.Printf("weather: recompute %s %s: %v", prov.Name, period, err)
			}
		}
	}
	return written, nil
}

// storeDays normalizes and upserts fetched days, deduplicating by date
// within the batch. The upsert keys on (province, date) and never lets a
// forecast row displace a historical one.
func (in *Ingestor) storeDays(ctx context.Context, province string, days []Day, source storage.WeatherSource, keep func(Day) bool) (int, error) {
	seen := make(map[string]bool)
	written := 0
	for _, d := range days {
		if keep != nil && !keep(d) {
			continue
		}
		key := d.Date.Format("2006-01-02")
		if seen[key] {
			continue
		}
		seen[key] = true

		row := Normalize(province, d, source)
		if err := in.Store.UpsertDailyWeather(ctx, row); err != nil {
			return written, fmt.Errorf("store %s %s: %w", province, key, err)
		}
		written++
	}
	return written, nil
}

// Normalize converts a fetched day into a storable row: computes temp_avg,
// estimates humidity when the source omits it, and rounds to two decimals.
func Normalize(province string, d Day, source storage.WeatherSource) storage.DailyWeather {
	tempAvg := (d.TempMax + d.TempMin) / 2

	humidity := d.Humidity
	if humidity == nil {
		h := EstimateHumidity(tempAvg, d.Precipitation)
		humidity = &h
	}
	h := Round2(*humidity)

	return storage.DailyWeather{
		Province:      province,
		Date:          d.Date,
		TempMax:       Round2(d.TempMax),
		TempMin:       Round2(d.TempMin),
		TempAvg:       Round2(tempAvg),
		Precipitation: Round2(d.Precipitation),
		Humidity:      &h,
		Source:        source,
	}
}

// RecomputeMonthly refreshes the monthly aggregate for one (province,
// period) from the stored daily rows.
func (in *Ingestor) RecomputeMonthly(ctx context.Context, province, period string) error {
	avgTemp, rainTotal, avgHumidity, days, err := in.Store.MonthlyWeatherAggregate(ctx, province, period)
	if err != nil {
		return err
	}
	if days == 0 {
		return nil
	}
	return in.Store.UpsertMonthlyWeatherStat(ctx, storage.MonthlyWeatherStat{
		Province:     province,
		Period:       period,
		AvgTemp:      Round2(avgTemp),
		RainTotal:    Round2(rainTotal),
		AvgHumidity:  Round2(avgHumidity),
		WeatherScore: MonthlyScore(avgTemp, rainTotal, avgHumidity),
		DaysCount:    days,
	})
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
