// Package season combines per-month price, holiday, and weather scores into
// a Low / Normal / High classification with per-season price ranges and
// best deals.
package season

import (
	"math"
	"sort"

	"fare_analytics/internal/scores"
	"fare_analytics/internal/storage"
)

// Fixed weights of the three signals in the season score.
const (
	priceWeight   = 0.60
	holidayWeight = 0.30
	weatherWeight = 0.10
)

// PriceRange is the min/max of raw stored prices in a season. Both zero is
// the missing-data sentinel, never a synthetic average.
type PriceRange struct {
	Min float64
	Max float64
}

// BestDeal is the cheapest stored fare in a season.
type BestDeal struct {
	Row     *storage.FlightPrice
	Price   float64
	Airline string
}

// Info describes one season bucket.
type Info struct {
	Type       storage.Season
	Periods    []string // sorted ascending
	PriceRange PriceRange
	BestDeal   *BestDeal
}

// Classification is the full classifier output for one route window.
type Classification struct {
	Seasons  []Info                    // ordered Low, Normal, High
	ByPeriod map[string]storage.Season // label per classified month
	Scores   map[string]float64        // composed season score per month
}

// SeasonScore composes the weighted season score for one month.
func SeasonScore(s scores.PeriodScores) float64 {
	return priceWeight*s.Price + holidayWeight*s.Holiday + weatherWeight*s.Weather
}

// percentileIndex computes index = ceil(p/100 * n) - 1, clamped to 0.
func percentileIndex(p float64, n int) int {
	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		return 0
	}
	return idx
}

// Classify tercile-splits the months present in the score map and derives
// per-season price ranges and best deals from the fare rows. Months without
// flight data receive no label. Scores tied across both tercile boundaries
// fall into Normal.
func Classify(rows []storage.FlightPrice, periodScores map[string]scores.PeriodScores) Classification {
	composed := make(map[string]float64, len(periodScores))
	periods := make([]string, 0, len(periodScores))
	for p, s := range periodScores {
		composed[p] = SeasonScore(s)
		periods = append(periods, p)
	}
	sort.Strings(periods)

	byPeriod := make(map[string]storage.Season, len(periods))
	if len(periods) > 0 {
		vals := make([]float64, 0, len(periods))
		for _, p := range periods {
			vals = append(vals, composed[p])
		}
		sort.Float64s(vals)
		t33 := vals[percentileIndex(33, len(vals))]
		t67 := vals[percentileIndex(67, len(vals))]

		for _, p := range periods {
			s := composed[p]
			switch {
			case s <= t33 && s >= t67:
				byPeriod[p] = storage.SeasonNormal
			case s <= t33:
				byPeriod[p] = storage.SeasonLow
			case s >= t67:
				byPeriod[p] = storage.SeasonHigh
			default:
				byPeriod[p] = storage.SeasonNormal
			}
		}
	}

	rowsByPeriod := make(map[string][]*storage.FlightPrice)
	for i := range rows {
		period := rows[i].DepartureDate.Format("2006-01")
		rowsByPeriod[period] = append(rowsByPeriod[period], &rows[i])
	}

	order := []storage.Season{storage.SeasonLow, storage.SeasonNormal, storage.SeasonHigh}
	seasons := make([]Info, 0, len(order))
	for _, label := range order {
		info := Info{Type: label}
		for _, p := range periods {
			if byPeriod[p] == label {
				info.Periods = append(info.Periods, p)
			}
		}

		var seasonRows []*storage.FlightPrice
		for _, p := range info.Periods {
			seasonRows = append(seasonRows, rowsByPeriod[p]...)
		}
		if len(seasonRows) == 0 && len(info.Periods) > 0 {
			// Refilter by month-of-year across the whole window before
			// giving up on a price range.
			months := make(map[string]bool, len(info.Periods))
			for _, p := range info.Periods {
				months[p[len(p)-2:]] = true
			}
			for i := range rows {
				if months[rows[i].DepartureDate.Format("01")] {
					seasonRows = append(seasonRows, &rows[i])
				}
			}
		}
		info.PriceRange = priceRange(seasonRows)
		info.BestDeal = bestDeal(seasonRows)
		seasons = append(seasons, info)
	}

	return Classification{Seasons: seasons, ByPeriod: byPeriod, Scores: composed}
}

// priceRange is the min/max of raw stored prices, or the 0/0 sentinel when
// the season has no rows.
func priceRange(rows []*storage.FlightPrice) PriceRange {
	if len(rows) == 0 {
		return PriceRange{}
	}
	lo, hi := rows[0].Price, rows[0].Price
	for _, r := range rows[1:] {
		if r.Price < lo {
			lo = r.Price
		}
		if r.Price > hi {
			hi = r.Price
		}
	}
	return PriceRange{Min: lo, Max: hi}
}

// bestDeal is the cheapest fare in the season, or nil when empty.
func bestDeal(rows []*storage.FlightPrice) *BestDeal {
	var best *storage.FlightPrice
	for _, r := range rows {
		if best == nil || r.Price < best.Price {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	return &BestDeal{Row: best, Price: best.Price, Airline: best.AirlineName}
}
