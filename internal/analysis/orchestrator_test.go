package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fare_analytics/internal/forecast"
	"fare_analytics/internal/pricing"
	"fare_analytics/internal/scores"
	"fare_analytics/internal/storage"
)

type mockStore struct {
	rows     []storage.FlightPrice
	airlines []storage.Airline
	listErr  error
}

func (m *mockStore) GetOrCreateRoute(ctx context.Context, origin, destination string) (*storage.Route, error) {
	return &storage.Route{ID: 1, Origin: origin, Destination: destination}, nil
}

func (m *mockStore) AirlinesForRoute(ctx context.Context, origins []string, destination string) ([]storage.Airline, error) {
	return m.airlines, nil
}

func (m *mockStore) ListFlightPrices(ctx context.Context, f storage.FlightPriceFilter) ([]storage.FlightPrice, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []storage.FlightPrice
	for _, r := range m.rows {
		if r.DepartureDate.Before(f.Start) || r.DepartureDate.After(f.End) {
			continue
		}
		if r.TripType != f.TripType || r.Cabin != f.Cabin {
			continue
		}
		if len(f.AirlineIDs) > 0 {
			found := false
			for _, id := range f.AirlineIDs {
				if id == r.AirlineID {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// stubScorer scores April highest and January lowest, deterministically.
type stubScorer struct{}

func (stubScorer) Resolve(ctx context.Context, routeID int64, routeKey, province string, periods []string, monthlyAvg map[string]float64) (map[string]scores.PeriodScores, error) {
	out := make(map[string]scores.PeriodScores, len(periods))
	for _, p := range periods {
		month := p[len(p)-2:]
		s := scores.PeriodScores{Price: 50, Holiday: 50, Weather: 50}
		switch month {
		case "04":
			s = scores.PeriodScores{Price: 95, Holiday: 95, Weather: 60}
		case "01":
			s = scores.PeriodScores{Price: 10, Holiday: 20, Weather: 70}
		}
		out[p] = s
	}
	return out, nil
}

type stubForecaster struct {
	unavailable bool
}

func (f *stubForecaster) Predict(ctx context.Context, origins []string, destination string, tripType storage.TripType, date time.Time) (*forecast.Prediction, error) {
	if f.unavailable {
		return nil, forecast.ErrModelUnavailable
	}
	return &forecast.Prediction{PredictedPrice: 2300, Confidence: "high", MinPrice: 1955, MaxPrice: 2645}, nil
}

func (f *stubForecaster) TrendWindow(ctx context.Context, origins []string, destination string, tripType storage.TripType, windowDays int) (*forecast.Trend, error) {
	if f.unavailable {
		return nil, forecast.ErrModelUnavailable
	}
	return &forecast.Trend{Trend: "stable"}, nil
}

func (f *stubForecaster) Graph(ctx context.Context, origins []string, destination string, tripType storage.TripType, days int) ([]forecast.GraphPoint, error) {
	return []forecast.GraphPoint{{Date: "2026-04-02", Low: 1700, Typical: 2000, High: 2600}}, nil
}

func fareOn(y, m, day int, price float64, airline string, id int64, trip storage.TripType) storage.FlightPrice {
	return storage.FlightPrice{
		RouteID:       1,
		AirlineID:     id,
		AirlineName:   airline,
		AirlineCode:   "XX",
		DepartureDate: time.Date(y, time.Month(m), day, 0, 0, 0, 0, time.UTC),
		TripType:      trip,
		Cabin:         storage.CabinEconomy,
		Price:         price,
		BasePrice:     price,
		SeasonLabel:   storage.SeasonNormal,
		CarbonGrams:   115000,
	}
}

func seededRows(trip storage.TripType) []storage.FlightPrice {
	var rows []storage.FlightPrice
	// January is cheap, April expensive, the rest in between.
	for m := 1; m <= 12; m++ {
		price := 2500.0
		switch m {
		case 1:
			price = 1500
		case 4:
			price = 4200
		}
		for day := 1; day <= 28; day += 7 {
			rows = append(rows, fareOn(2026, m, day, price+float64(day)*10, "Thai Airways", 1, trip))
		}
	}
	// The anchor dates used by the comparison scenario.
	rows = append(rows,
		fareOn(2026, 4, 13, 4300, "Thai Airways", 1, trip),
		fareOn(2026, 4, 6, 4100, "Bangkok Airways", 2, trip),
		fareOn(2026, 4, 20, 4500, "Thai Airways", 1, trip),
	)
	return rows
}

func baseRequest() Request {
	return Request{
		Origin:        "Bangkok",
		Destination:   "Phuket",
		TripType:      "round-trip",
		Cabin:         "economy",
		StartDate:     "2026-04-13",
		DurationRange: DurationRange{Min: 3, Max: 7},
		Passengers:    pricing.Mix{Adults: 1},
	}
}

func newAnalyzer(store *mockStore, fc Forecaster) *Analyzer {
	a := New(store, stubScorer{}, fc)
	a.Now = func() time.Time { return time.Date(2026, 3, 20, 8, 0, 0, 0, time.UTC) }
	return a
}

func TestAnalyzeBangkokPhuketHighSeason(t *testing.T) {
	store := &mockStore{
		rows:     seededRows(storage.TripRoundTrip),
		airlines: []storage.Airline{{ID: 1, Code: "TG", Name: "Thai Airways"}},
	}
	a := newAnalyzer(store, &stubForecaster{})

	res, err := a.AnalyzeFlightPrices(context.Background(), baseRequest())
	if err != nil {
		t.Fatal(err)
	}

	if res.RecommendedPeriod.Season != "high" {
		t.Errorf("recommended season = %q, want high (user picked an April date)", res.RecommendedPeriod.Season)
	}
	if res.RecommendedPeriod.Savings < 0 {
		t.Errorf("savings = %d", res.RecommendedPeriod.Savings)
	}
	if res.PriceComparison.IfGoBefore.Date != "2026-04-06" {
		t.Errorf("ifGoBefore.date = %q", res.PriceComparison.IfGoBefore.Date)
	}
	if res.PriceComparison.IfGoAfter.Date != "2026-04-20" {
		t.Errorf("ifGoAfter.date = %q", res.PriceComparison.IfGoAfter.Date)
	}
	if res.PriceComparison.BasePrice != 4300 {
		t.Errorf("basePrice = %d, want 4300", res.PriceComparison.BasePrice)
	}
	if res.PriceComparison.IfGoBefore.Difference != 4100-4300 {
		t.Errorf("ifGoBefore.difference = %d", res.PriceComparison.IfGoBefore.Difference)
	}

	if len(res.Seasons) != 3 {
		t.Fatalf("seasons = %d", len(res.Seasons))
	}
	if res.Seasons[0].Type != "low" || res.Seasons[1].Type != "normal" || res.Seasons[2].Type != "high" {
		t.Errorf("season order: %v %v %v", res.Seasons[0].Type, res.Seasons[1].Type, res.Seasons[2].Type)
	}

	// Chart covers all of April and carries the anchor day.
	if len(res.PriceChartData) != 30 {
		t.Errorf("chart days = %d, want 30", len(res.PriceChartData))
	}
	found := false
	for _, day := range res.PriceChartData {
		if day.StartDate == "2026-04-13" {
			found = true
			if !day.HasData || day.Price != 4300 {
				t.Errorf("anchor chart day = %+v", day)
			}
		}
	}
	if !found {
		t.Error("anchor day missing from chart")
	}

	if res.PricePrediction == nil || res.PriceTrend == nil || len(res.PriceGraphData) == 0 {
		t.Error("forecast fields missing")
	}

	// Carbon grams surface as kilograms with one decimal.
	if len(res.FlightPrices) == 0 || res.FlightPrices[0].CarbonKg != 115.0 {
		t.Errorf("carbon kg = %v", res.FlightPrices[0].CarbonKg)
	}
}

func TestAnalyzeOneWayHalvesPrices(t *testing.T) {
	store := &mockStore{rows: seededRows(storage.TripOneWay)}
	a := newAnalyzer(store, &stubForecaster{unavailable: true})

	req := baseRequest()
	req.TripType = "one-way"

	res, err := a.AnalyzeFlightPrices(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	// The anchor fare is 4300 stored; one adult one-way displays 2150.
	if res.PriceComparison.BasePrice != 2150 {
		t.Errorf("basePrice = %d, want 2150", res.PriceComparison.BasePrice)
	}
	// Every displayed price equals half its stored counterpart. The
	// cheapest stored fare overall is 1510 (January 1), so the low-season
	// best deal must display 755.
	for _, s := range res.Seasons {
		if s.Type == "low" && s.BestDeal != nil && s.BestDeal.Price != 755 {
			t.Errorf("low best deal = %d, want 755", s.BestDeal.Price)
		}
	}
	for _, day := range res.PriceChartData {
		if day.StartDate == "2026-04-13" && day.Price != 2150 {
			t.Errorf("anchor chart price = %d, want 2150", day.Price)
		}
	}
}

func TestAnalyzePassengerMix(t *testing.T) {
	store := &mockStore{rows: []storage.FlightPrice{
		fareOn(2026, 4, 13, 1000, "Thai Airways", 1, storage.TripRoundTrip),
	}}
	a := newAnalyzer(store, nil)

	req := baseRequest()
	req.Passengers = pricing.Mix{Adults: 2, Children: 1, Infants: 1}

	res, err := a.AnalyzeFlightPrices(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.PriceComparison.BasePrice != 2850 {
		t.Errorf("basePrice = %d, want 2850", res.PriceComparison.BasePrice)
	}
	if res.RecommendedPeriod.Price != 2850 {
		t.Errorf("recommended price = %d, want 2850", res.RecommendedPeriod.Price)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	store := &mockStore{rows: seededRows(storage.TripRoundTrip)}
	a := newAnalyzer(store, &stubForecaster{unavailable: true})

	req := baseRequest()
	first, err := a.AnalyzeFlightPrices(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.AnalyzeFlightPrices(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	aj, _ := json.Marshal(first.Seasons)
	bj, _ := json.Marshal(second.Seasons)
	if string(aj) != string(bj) {
		t.Error("season assignment differs across identical queries")
	}
}

func TestAnalyzeUnresolvedOrigin(t *testing.T) {
	a := newAnalyzer(&mockStore{}, nil)
	req := baseRequest()
	req.Origin = "Atlantis"

	_, err := a.AnalyzeFlightPrices(context.Background(), req)
	if KindOf(err) != KindInput {
		t.Errorf("err = %v, want input error", err)
	}
}

func TestAnalyzeBadTripType(t *testing.T) {
	a := newAnalyzer(&mockStore{}, nil)
	req := baseRequest()
	req.TripType = "teleport"

	_, err := a.AnalyzeFlightPrices(context.Background(), req)
	if KindOf(err) != KindInput {
		t.Errorf("err = %v, want input error", err)
	}
}

func TestAnalyzeStorageError(t *testing.T) {
	store := &mockStore{listErr: errors.New("connection refused")}
	a := newAnalyzer(store, nil)

	_, err := a.AnalyzeFlightPrices(context.Background(), baseRequest())
	if KindOf(err) != KindStorage {
		t.Errorf("err = %v, want storage error", err)
	}
}

func TestAnalyzeForecastFailureDegrades(t *testing.T) {
	store := &mockStore{rows: seededRows(storage.TripRoundTrip)}
	a := newAnalyzer(store, &stubForecaster{unavailable: true})

	res, err := a.AnalyzeFlightPrices(context.Background(), baseRequest())
	if err != nil {
		t.Fatal(err)
	}
	if res.PricePrediction != nil || res.PriceTrend != nil {
		t.Error("unavailable forecast fields should be absent")
	}
	if len(res.PriceGraphData) == 0 {
		t.Error("graph still expected from the fallback path")
	}
}

func TestAnalyzeAirlineFilter(t *testing.T) {
	store := &mockStore{
		rows: seededRows(storage.TripRoundTrip),
		airlines: []storage.Airline{
			{ID: 1, Code: "TG", Name: "Thai Airways"},
			{ID: 2, Code: "PG", Name: "Bangkok Airways"},
		},
	}
	a := newAnalyzer(store, nil)

	req := baseRequest()
	req.SelectedAirlines = []string{"PG"}

	res, err := a.AnalyzeFlightPrices(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range res.FlightPrices {
		if row.Airline != "Bangkok Airways" {
			t.Fatalf("airline filter leaked %q", row.Airline)
		}
	}
}
