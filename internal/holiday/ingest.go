package holiday

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"fare_analytics/internal/storage"
)

// Store is the slice of the storage layer the ingestor writes through.
type Store interface {
	UpsertHolidayStat(ctx context.Context, s storage.HolidayStat) error
}

// yearPause is the minimum gap between upstream year calls.
const yearPause = 200 * time.Millisecond

// Ingestor runs the holiday ingestion flow.
type Ingestor struct {
	Store  Store
	Client *Client

	Sleep func(time.Duration)
}

// NewIngestor wires an ingestor with real sleep.
func NewIngestor(store Store, client *Client) *Ingestor {
	return &Ingestor{Store: store, Client: client, Sleep: time.Sleep}
}

// Run ingests holidays for every year in [fromYear, toYear]. The
// date-range endpoint is tried first; on failure each year is fetched
// individually. Per-year failures are logged and skipped.
func (in *Ingestor) Run(ctx context.Context, fromYear, toYear int) error {
	start := time.Date(fromYear, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(toYear, 12, 31, 0, 0, 0, 0, time.UTC)

	entries, err := in.Client.FetchRange(ctx, start, end)
	if err != nil {
		log.Printf("holiday: range fetch failed (%v), falling back to year-by-year", err)
		entries = nil
		for year := fromYear; year <= toYear; year++ {
			if year > fromYear {
				in.Sleep(yearPause)
			}
			ye, err := in.Client.FetchYear(ctx, year)
			if err != nil {
				log.Printf("holiday: year %d: %v (skipping)", year, err)
				continue
			}
			entries = append(entries, ye...)
		}
	}
	if len(entries) == 0 {
		return fmt.Errorf("holiday: no entries ingested for %d-%d", fromYear, toYear)
	}

	return in.StoreStats(ctx, entries)
}

// StoreStats groups entries by month and upserts one HolidayStat per
// period.
func (in *Ingestor) StoreStats(ctx context.Context, entries []Entry) error {
	byPeriod := make(map[string][]Entry)
	for _, e := range entries {
		period := e.Date.Format("2006-01")
		byPeriod[period] = append(byPeriod[period], e)
	}

	periods := make([]string, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Strings(periods)

	for _, period := range periods {
		stat := BuildStat(period, byPeriod[period])
		if err := in.Store.UpsertHolidayStat(ctx, stat); err != nil {
			return fmt.Errorf("holiday: store %s: %w", period, err)
		}
	}
	return nil
}

// BuildStat aggregates one month of holidays into a HolidayStat row.
func BuildStat(period string, entries []Entry) storage.HolidayStat {
	detail := make([]storage.HolidayEntry, 0, len(entries))
	for _, e := range entries {
		detail = append(detail, storage.HolidayEntry{
			Date:     e.Date.Format("2006-01-02"),
			Name:     e.Name,
			Category: e.Category,
		})
	}
	return storage.HolidayStat{
		Period:            period,
		HolidaysCount:     len(entries),
		LongWeekendsCount: CountLongWeekends(entries),
		HolidayScore:      Score(entries),
		Detail:            detail,
	}
}
