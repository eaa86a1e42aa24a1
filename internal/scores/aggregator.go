// Package scores materializes the three per-month signals the season
// classifier combines: price percentile, holiday score, and weather score.
//
// Each signal is resolved in preference order: precomputed statistics,
// on-the-fly aggregation from raw rows, then a deterministic fabricated
// value seeded so that repeated queries yield identical scores. The price
// percentile's reference set is the months present in the query window, not
// the full year; callers that change the window may see percentiles shift.
package scores

import (
	"context"
	"log"
	"sort"

	"fare_analytics/internal/calendar"
	"fare_analytics/internal/storage"
)

// Store is the slice of the storage layer the aggregator reads.
type Store interface {
	RoutePriceStats(ctx context.Context, routeID int64, periods []string) (map[string]storage.RoutePriceStat, error)
	HolidayStats(ctx context.Context, periods []string) (map[string]storage.HolidayStat, error)
	MonthlyWeatherStats(ctx context.Context, province string, periods []string) (map[string]storage.MonthlyWeatherStat, error)
	MonthlyWeatherAggregate(ctx context.Context, province, period string) (avgTemp, rainTotal, avgHumidity float64, days int, err error)
	UpsertHolidayStat(ctx context.Context, s storage.HolidayStat) error
}

// HolidayFetcher fetches and aggregates upstream holidays for the periods
// when stats are missing. Nil disables the fetch fallback.
type HolidayFetcher interface {
	FetchPeriods(ctx context.Context, periods []string) (map[string]storage.HolidayStat, error)
}

// WeatherScorer recomputes a monthly score from aggregates.
type WeatherScorer func(avgTemp, rainTotal, avgHumidity float64) float64

// Aggregator resolves per-period scores for one analysis request.
type Aggregator struct {
	Store          Store
	Holidays       HolidayFetcher
	MonthlyWeather WeatherScorer
}

// New returns an aggregator over the store. The holiday fetcher is
// optional.
func New(store Store, holidays HolidayFetcher, scorer WeatherScorer) *Aggregator {
	return &Aggregator{Store: store, Holidays: holidays, MonthlyWeather: scorer}
}

// PeriodScores carries the three signals for one month.
type PeriodScores struct {
	Price   float64
	Holiday float64
	Weather float64
}

// Resolve produces the score maps for the given periods. monthlyAvg is the
// average stored price per period from the query's flight rows, used both
// for the percentile fallback and as the shape of fabricated scores.
// routeKey identifies the route (for example "BKK-HKT") and seeds the
// weather fabrication; province is the destination province, empty when the
// destination has no mapping.
func (a *Aggregator) Resolve(ctx context.Context, routeID int64, routeKey, province string, periods []string, monthlyAvg map[string]float64) (map[string]PeriodScores, error) {
	sorted := append([]string(nil), periods...)
	sort.Strings(sorted)

	price := a.pricePercentiles(ctx, routeID, sorted, monthlyAvg)
	holiday := a.holidayScores(ctx, sorted, monthlyAvg)
	weather := a.weatherScores(ctx, province, routeKey, sorted, monthlyAvg)

	out := make(map[string]PeriodScores, len(sorted))
	for _, p := range sorted {
		out[p] = PeriodScores{Price: price[p], Holiday: holiday[p], Weather: weather[p]}
	}
	return out, nil
}

// pricePercentiles prefers precomputed stats and falls back to ranking the
// monthly averages across the window: the percentile of a month is the
// percent of months whose average is less than or equal to its own.
func (a *Aggregator) pricePercentiles(ctx context.Context, routeID int64, periods []string, monthlyAvg map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(periods))

	stats, err := a.Store.RoutePriceStats(ctx, routeID, periods)
	if err != nil {
		log.Printf("scores: route price stats: %v (using on-the-fly percentiles)", err)
		stats = nil
	}

	var missing []string
	for _, p := range periods {
		if s, ok := stats[p]; ok {
			out[p] = s.PricePercentile
		} else {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return out
	}

	// Rank within the window.
	avgs := make([]float64, 0, len(periods))
	for _, p := range periods {
		avgs = append(avgs, monthlyAvg[p])
	}
	sort.Float64s(avgs)
	n := float64(len(avgs))
	for _, p := range missing {
		v := monthlyAvg[p]
		le := 0
		for _, x := range avgs {
			if x <= v {
				le++
			}
		}
		out[p] = 100 * float64(le) / n
	}
	return out
}

// holidayScores prefers stored stats, then an upstream fetch (persisting
// what it finds), then fabrication from price shape seeded by the period
// alone; holidays are national, so two routes agree.
func (a *Aggregator) holidayScores(ctx context.Context, periods []string, monthlyAvg map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(periods))

	stats, err := a.Store.HolidayStats(ctx, periods)
	if err != nil {
		log.Printf("scores: holiday stats: %v (using fallbacks)", err)
		stats = map[string]storage.HolidayStat{}
	}

	var missing []string
	for _, p := range periods {
		if s, ok := stats[p]; ok {
			out[p] = s.HolidayScore
		} else {
			missing = append(missing, p)
		}
	}

	if len(missing) > 0 && a.Holidays != nil {
		fetched, err := a.Holidays.FetchPeriods(ctx, missing)
		if err != nil {
			log.Printf("scores: holiday fetch: %v (fabricating)", err)
		} else {
			still := missing[:0]
			for _, p := range missing {
				if s, ok := fetched[p]; ok {
					out[p] = s.HolidayScore
					if err := a.Store.UpsertHolidayStat(ctx, s); err != nil {
						log.Printf("scores: persist holiday stat %s: %v", p, err)
					}
				} else {
					still = append(still, p)
				}
			}
			missing = still
		}
	}

	norm := normalizeAverages(periods, monthlyAvg)
	for _, p := range missing {
		out[p] = fabricate(norm[p], 35, 95, p)
	}
	return out
}

// weatherScores prefers stored monthly stats, then recomputes from daily
// rows, then fabricates from price shape seeded by period plus route so
// distinct routes get distinct mock curves. An unmapped destination is
// weather-neutral.
func (a *Aggregator) weatherScores(ctx context.Context, province, routeKey string, periods []string, monthlyAvg map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(periods))

	if province == "" {
		for _, p := range periods {
			out[p] = 50
		}
		return out
	}

	stats, err := a.Store.MonthlyWeatherStats(ctx, province, periods)
	if err != nil {
		log.Printf("scores: monthly weather stats: %v (using fallbacks)", err)
		stats = map[string]storage.MonthlyWeatherStat{}
	}

	var missing []string
	for _, p := range periods {
		if s, ok := stats[p]; ok {
			out[p] = s.WeatherScore
		} else {
			missing = append(missing, p)
		}
	}

	still := missing[:0]
	for _, p := range missing {
		avgTemp, rainTotal, avgHumidity, days, err := a.Store.MonthlyWeatherAggregate(ctx, province, p)
		if err != nil || days == 0 {
			still = append(still, p)
			continue
		}
		out[p] = a.MonthlyWeather(avgTemp, rainTotal, avgHumidity)
	}
	missing = still

	norm := normalizeAverages(periods, monthlyAvg)
	for _, p := range missing {
		out[p] = fabricate(norm[p], 30, 90, p+routeKey)
	}
	return out
}

// normalizeAverages maps each period's average price to [0, 1] across the
// window; a flat window maps every period to 0.5.
func normalizeAverages(periods []string, monthlyAvg map[string]float64) map[string]float64 {
	lo, hi := 0.0, 0.0
	first := true
	for _, p := range periods {
		v := monthlyAvg[p]
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make(map[string]float64, len(periods))
	for _, p := range periods {
		if hi == lo {
			out[p] = 0.5
			continue
		}
		out[p] = (monthlyAvg[p] - lo) / (hi - lo)
	}
	return out
}

// fabricate maps a normalized price to [lo, hi] and adds seeded jitter of
// amplitude 20 (±10), clamped to [0, 100]. The same seed always yields the
// same score.
func fabricate(norm, lo, hi float64, seed string) float64 {
	v := lo + norm*(hi-lo)
	v += (calendar.SeededRand(seed) - 0.5) * 20
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
