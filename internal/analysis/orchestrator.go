package analysis

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"fare_analytics/internal/airports"
	"fare_analytics/internal/calendar"
	"fare_analytics/internal/forecast"
	"fare_analytics/internal/pricing"
	"fare_analytics/internal/scores"
	"fare_analytics/internal/season"
	"fare_analytics/internal/storage"
)

// Store is the slice of the storage layer the orchestrator reads. The
// analysis path is read-only apart from lazy route creation.
type Store interface {
	GetOrCreateRoute(ctx context.Context, origin, destination string) (*storage.Route, error)
	AirlinesForRoute(ctx context.Context, origins []string, destination string) ([]storage.Airline, error)
	ListFlightPrices(ctx context.Context, f storage.FlightPriceFilter) ([]storage.FlightPrice, error)
}

// Scorer resolves the per-period signal maps.
type Scorer interface {
	Resolve(ctx context.Context, routeID int64, routeKey, province string, periods []string, monthlyAvg map[string]float64) (map[string]scores.PeriodScores, error)
}

// Forecaster produces the optional forward-looking artifacts.
type Forecaster interface {
	Predict(ctx context.Context, origins []string, destination string, tripType storage.TripType, date time.Time) (*forecast.Prediction, error)
	TrendWindow(ctx context.Context, origins []string, destination string, tripType storage.TripType, windowDays int) (*forecast.Trend, error)
	Graph(ctx context.Context, origins []string, destination string, tripType storage.TripType, days int) ([]forecast.GraphPoint, error)
}

// trendWindowDays is the horizon of the price-trend summary.
const trendWindowDays = 30

// Analyzer is the per-process analysis service. It holds no per-request
// state; requests may run concurrently.
type Analyzer struct {
	Store    Store
	Scores   Scorer
	Forecast Forecaster

	Now func() time.Time
}

// New wires an analyzer.
func New(store Store, scorer Scorer, forecaster Forecaster) *Analyzer {
	return &Analyzer{Store: store, Scores: scorer, Forecast: forecaster, Now: time.Now}
}

// AnalyzeFlightPrices runs one query end to end. It surfaces only input
// errors, permanent storage errors, and deadline expiry; missing signals
// degrade to fallbacks and forecast fields are dropped on failure.
func (a *Analyzer) AnalyzeFlightPrices(ctx context.Context, req Request) (*Result, error) {
	now := a.Now().UTC()

	// Origin and destination resolution. Multi-airport cities expand the
	// origin set; the destination uses its primary airport.
	origins, err := airports.Resolve(req.Origin)
	if err != nil {
		return nil, inputErr("origin", err)
	}
	dests, err := airports.Resolve(req.Destination)
	if err != nil {
		return nil, inputErr("destination", err)
	}
	destination := dests[0]

	tripType, err := storage.ParseTripType(req.TripType)
	if err != nil {
		return nil, inputErr("trip type", err)
	}
	cabin, err := storage.ParseCabin(req.Cabin)
	if err != nil {
		return nil, inputErr("cabin", err)
	}

	mix := req.Passengers.Normalize()
	oneWay := tripType == storage.TripOneWay
	display := func(p float64) int { return pricing.Display(p, mix, oneWay) }

	userStart, userEnd, err := a.parseUserWindow(req, now)
	if err != nil {
		return nil, inputErr("date window", err)
	}

	// Airline filter.
	available, err := a.Store.AirlinesForRoute(ctx, origins, destination)
	if err != nil {
		return nil, a.classifyStorage(ctx, "airlines", err)
	}
	airlineIDs := filterAirlineIDs(available, req.SelectedAirlines)

	route, err := a.Store.GetOrCreateRoute(ctx, origins[0], destination)
	if err != nil {
		return nil, a.classifyStorage(ctx, "route", err)
	}
	routeKey := origins[0] + "-" + destination

	// The anchor-independent forecast artifacts fan out as soon as the
	// inputs are fixed; their fields are optional and a slow model never
	// blocks the response past the request deadline.
	forecastCh := a.launchForecast(ctx, origins, destination, tripType)

	// Load fares over the expanded window.
	winStart, winEnd := ExpandWindow(userStart, userEnd, now)
	rows, err := a.Store.ListFlightPrices(ctx, storage.FlightPriceFilter{
		Origins:     origins,
		Destination: destination,
		Start:       winStart,
		End:         winEnd,
		TripType:    tripType,
		Cabin:       cabin,
		AirlineIDs:  airlineIDs,
	})
	if err != nil {
		return nil, a.classifyStorage(ctx, "flight prices", err)
	}

	// Seasons.
	monthlyAvg, periods := monthlyAverages(rows)
	province := ""
	if p, ok := airports.ProvinceFor(destination); ok {
		province = p.Name
	}
	periodScores, err := a.Scores.Resolve(ctx, route.ID, routeKey, province, periods, monthlyAvg)
	if err != nil {
		return nil, a.classifyStorage(ctx, "scores", err)
	}
	classification := season.Classify(rows, periodScores)

	// Recommendation: the season holding the overall cheapest best deal.
	recSeason, recRow := cheapestDeal(classification)
	recStart := userStart
	if recRow != nil {
		recStart = recRow.DepartureDate
	}
	tripDays := int(math.Round(req.DurationRange.Avg()))
	recEnd := recStart.AddDate(0, 0, tripDays)

	// The label shown with the recommendation follows the user's chosen
	// date when one was given.
	recLabel := string(recSeason)
	if req.StartDate != "" {
		if l, ok := classification.ByPeriod[calendar.Period(userStart)]; ok {
			recLabel = string(l)
		}
	}

	// Anchor for comparison and chart.
	anchor := recStart
	if req.StartDate != "" {
		anchor = userStart
	}

	idx := indexCheapest(rows)
	comparison := buildComparison(idx, anchor, display)

	chartLabel := "normal"
	if l, ok := classification.ByPeriod[calendar.Period(anchor)]; ok {
		chartLabel = string(l)
	}
	chart := buildChart(idx, anchor, chartLabel, tripDays, !oneWay, display)

	// Savings against the recommendation.
	recPrice := 0
	recAirline := ""
	if recRow != nil {
		recPrice = display(recRow.Price)
		recAirline = recRow.AirlineName
	}
	savings := a.savings(req, idx, anchor, classification, recPrice, display)

	result := &Result{
		RecommendedPeriod: RecommendedPeriod{
			StartDate:  calendar.FormatThaiDate(recStart),
			EndDate:    calendar.FormatThaiDate(recEnd),
			ReturnDate: calendar.FormatThaiDate(recEnd),
			Price:      recPrice,
			Airline:    recAirline,
			Season:     recLabel,
			Savings:    savings,
		},
		Seasons:         buildSeasons(classification, tripDays, display),
		PriceComparison: comparison,
		PriceChartData:  chart,
		FlightPrices:    buildCatalog(rows, display),
	}

	// The single-date prediction anchors on the resolved date; failure
	// leaves the field absent.
	if a.Forecast != nil {
		if p, err := a.Forecast.Predict(ctx, origins, destination, tripType, anchor); err != nil {
			log.Printf("analysis: prediction unavailable: %v", err)
		} else {
			result.PricePrediction = p
		}
	}

	// Collect the remaining forecast artifacts, dropping them silently on
	// deadline expiry.
	select {
	case f := <-forecastCh:
		result.PriceTrend = f.trend
		result.PriceGraphData = f.graph
	case <-ctx.Done():
	}

	if ctx.Err() != nil {
		return nil, timeoutErr("analysis", ctx.Err())
	}
	return result, nil
}

// parseUserWindow parses the request dates, defaulting a missing start to
// today and a missing end to the start.
func (a *Analyzer) parseUserWindow(req Request, now time.Time) (time.Time, time.Time, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if req.StartDate != "" {
		var err error
		if start, err = parseUTCDate(req.StartDate); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	end := start
	if req.EndDate != "" {
		var err error
		if end, err = parseUTCDate(req.EndDate); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

// classifyStorage maps a storage failure to the surfaced taxonomy: deadline
// expiry wins over everything else.
func (a *Analyzer) classifyStorage(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return timeoutErr(what, ctx.Err())
	}
	return storageErr(what, err)
}

// filterAirlineIDs narrows the available airlines to the user's codes.
// Unknown codes are ignored; an empty selection keeps every airline.
func filterAirlineIDs(available []storage.Airline, selected []string) []int64 {
	if len(selected) == 0 {
		return nil
	}
	want := make(map[string]bool, len(selected))
	for _, code := range selected {
		want[code] = true
	}
	var ids []int64
	for _, a := range available {
		if want[a.Code] {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// monthlyAverages computes the average stored price per period, returning
// the periods that have fares.
func monthlyAverages(rows []storage.FlightPrice) (map[string]float64, []string) {
	sum := make(map[string]float64)
	count := make(map[string]int)
	for _, r := range rows {
		p := calendar.Period(r.DepartureDate)
		sum[p] += r.Price
		count[p]++
	}

	avg := make(map[string]float64, len(sum))
	periods := make([]string, 0, len(sum))
	for p, s := range sum {
		avg[p] = s / float64(count[p])
		periods = append(periods, p)
	}
	sort.Strings(periods)
	return avg, periods
}

// cheapestDeal finds the season holding the overall cheapest best deal.
func cheapestDeal(c season.Classification) (storage.Season, *storage.FlightPrice) {
	best := storage.SeasonNormal
	var bestRow *storage.FlightPrice
	for _, s := range c.Seasons {
		if s.BestDeal == nil {
			continue
		}
		if bestRow == nil || s.BestDeal.Price < bestRow.Price {
			best = s.Type
			bestRow = s.BestDeal.Row
		}
	}
	return best, bestRow
}

// savings compares what the user would pay on the anchor against the
// recommendation; without a chosen date it compares the high-season best
// deal instead. Either side missing yields zero.
func (a *Analyzer) savings(req Request, idx fareIndex, anchor time.Time, c season.Classification, recPrice int, display func(float64) int) int {
	if recPrice == 0 {
		return 0
	}

	if req.StartDate != "" {
		row := idx.on(anchor)
		if row == nil {
			return 0
		}
		if s := display(row.Price) - recPrice; s > 0 {
			return s
		}
		return 0
	}

	for _, s := range c.Seasons {
		if s.Type == storage.SeasonHigh && s.BestDeal != nil {
			if sv := display(s.BestDeal.Price) - recPrice; sv > 0 {
				return sv
			}
			return 0
		}
	}
	return 0
}

// buildSeasons renders the classifier output: localized month names,
// displayed price ranges, best deals with trip dates.
func buildSeasons(c season.Classification, tripDays int, display func(float64) int) []SeasonOut {
	out := make([]SeasonOut, 0, len(c.Seasons))
	for _, s := range c.Seasons {
		so := SeasonOut{
			Type:        string(s.Type),
			Description: seasonDescriptions[string(s.Type)],
			PriceRange: PriceRangeOut{
				Min: display(s.PriceRange.Min),
				Max: display(s.PriceRange.Max),
			},
		}
		for _, p := range s.Periods {
			if t, err := calendar.ParsePeriod(p); err == nil {
				so.Months = append(so.Months, calendar.MonthName(int(t.Month())))
			}
		}
		if s.BestDeal != nil {
			dep := s.BestDeal.Row.DepartureDate
			so.BestDeal = &BestDealOut{
				Dates:   calendar.FormatThaiDate(dep) + " - " + calendar.FormatThaiDate(dep.AddDate(0, 0, tripDays)),
				Price:   display(s.BestDeal.Price),
				Airline: s.BestDeal.Airline,
			}
		}
		out = append(out, so)
	}
	return out
}

// buildCatalog mirrors the raw fare rows with display pricing and carbon
// grams converted to kilograms at one decimal.
func buildCatalog(rows []storage.FlightPrice, display func(float64) int) []CatalogRow {
	out := make([]CatalogRow, 0, len(rows))
	for _, r := range rows {
		cr := CatalogRow{
			Airline:       r.AirlineName,
			AirlineCode:   r.AirlineCode,
			FlightNumber:  r.FlightNumber,
			DepartureDate: r.DepartureDate.Format("2006-01-02"),
			TripType:      string(r.TripType),
			Cabin:         string(r.Cabin),
			Price:         display(r.Price),
			BasePrice:     r.BasePrice,
			Season:        string(r.SeasonLabel),
			DepartureTime: r.DepartureTime,
			ArrivalTime:   r.ArrivalTime,
			Duration:      r.Duration,
			Airplane:      r.Airplane,
			CarbonKg:      math.Round(float64(r.CarbonGrams)/100) / 10,
			Legroom:       r.Legroom,
			OftenDelayed:  r.OftenDelayed,
		}
		if r.ReturnDate != nil {
			cr.ReturnDate = r.ReturnDate.Format("2006-01-02")
		}
		out = append(out, cr)
	}
	return out
}

// forecastResult bundles the anchor-independent forecast artifacts.
type forecastResult struct {
	trend *forecast.Trend
	graph []forecast.GraphPoint
}

// launchForecast runs the trend and graph calls concurrently. Every
// failure is logged and swallowed; the channel always yields exactly one
// value.
func (a *Analyzer) launchForecast(ctx context.Context, origins []string, destination string, tripType storage.TripType) <-chan forecastResult {
	ch := make(chan forecastResult, 1)
	if a.Forecast == nil {
		ch <- forecastResult{}
		return ch
	}

	go func() {
		var res forecastResult
		var wg sync.WaitGroup

		wg.Add(2)
		go func() {
			defer wg.Done()
			t, err := a.Forecast.TrendWindow(ctx, origins, destination, tripType, trendWindowDays)
			if err != nil {
				log.Printf("analysis: trend unavailable: %v", err)
				return
			}
			res.trend = t
		}()
		go func() {
			defer wg.Done()
			g, err := a.Forecast.Graph(ctx, origins, destination, tripType, forecast.DefaultGraphDays)
			if err != nil {
				log.Printf("analysis: graph unavailable: %v", err)
				return
			}
			res.graph = g
		}()

		wg.Wait()
		ch <- res
	}()
	return ch
}
