package analysis

import (
	"math"
	"time"

	"fare_analytics/internal/storage"
)

// comparisonOffsetDays is how far either side of the anchor the
// before/after lookup reaches.
const comparisonOffsetDays = 7

// fareIndex maps YYYY-MM-DD to the cheapest fare departing that day.
type fareIndex map[string]*storage.FlightPrice

func indexCheapest(rows []storage.FlightPrice) fareIndex {
	idx := make(fareIndex)
	for i := range rows {
		key := rows[i].DepartureDate.Format("2006-01-02")
		if cur, ok := idx[key]; !ok || rows[i].Price < cur.Price {
			idx[key] = &rows[i]
		}
	}
	return idx
}

func (f fareIndex) on(d time.Time) *storage.FlightPrice {
	return f[d.Format("2006-01-02")]
}

// buildComparison relates the anchor date's cheapest fare to the fares one
// week before and after. With no anchor fare but both neighbors present,
// their mean serves as the reference; with a single neighbor there is no
// reference and percentages stay zero.
func buildComparison(idx fareIndex, anchor time.Time, display func(float64) int) PriceComparison {
	before := anchor.AddDate(0, 0, -comparisonOffsetDays)
	after := anchor.AddDate(0, 0, comparisonOffsetDays)

	anchorRow := idx.on(anchor)
	beforeRow := idx.on(before)
	afterRow := idx.on(after)

	cmp := PriceComparison{
		IfGoBefore: NeighborPrice{Date: before.Format("2006-01-02")},
		IfGoAfter:  NeighborPrice{Date: after.Format("2006-01-02")},
	}

	var ref int
	haveRef := false
	if anchorRow != nil {
		ref = display(anchorRow.Price)
		haveRef = true
		cmp.BasePrice = ref
		cmp.BaseAirline = anchorRow.AirlineName
	} else if beforeRow != nil && afterRow != nil {
		ref = (display(beforeRow.Price) + display(afterRow.Price)) / 2
		haveRef = true
	}

	fill := func(n *NeighborPrice, row *storage.FlightPrice) {
		if row == nil {
			return
		}
		n.Price = display(row.Price)
		if haveRef && ref > 0 {
			n.Difference = n.Price - ref
			n.Percentage = round2f(100 * float64(n.Difference) / float64(ref))
		}
	}
	fill(&cmp.IfGoBefore, beforeRow)
	fill(&cmp.IfGoAfter, afterRow)

	return cmp
}

// buildChart emits one entry per day of the anchor's calendar month. Days
// without fares carry price 0 and HasData false; the anchor day is present
// regardless so the chart can mark it.
func buildChart(idx fareIndex, anchor time.Time, seasonLabel string, tripDays int, roundTrip bool, display func(float64) int) []ChartDay {
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)

	var days []ChartDay
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		entry := ChartDay{
			StartDate: d.Format("2006-01-02"),
			Season:    seasonLabel,
		}
		if roundTrip {
			entry.ReturnDate = d.AddDate(0, 0, tripDays).Format("2006-01-02")
			entry.Duration = tripDays
		}
		if row := idx.on(d); row != nil {
			entry.Price = display(row.Price)
			entry.HasData = true
		}
		days = append(days, entry)
	}
	return days
}

func round2f(v float64) float64 {
	return math.Round(v*100) / 100
}
