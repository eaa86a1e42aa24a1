package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"fare_analytics/internal/storage"
)

type mockStore struct {
	rows []storage.FlightPrice
}

func (m *mockStore) ListFlightPrices(ctx context.Context, f storage.FlightPriceFilter) ([]storage.FlightPrice, error) {
	var out []storage.FlightPrice
	for _, r := range m.rows {
		if r.DepartureDate.Before(f.Start) || r.DepartureDate.After(f.End) {
			continue
		}
		if r.TripType != f.TripType || r.Cabin != f.Cabin {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockStore) HolidayStats(ctx context.Context, periods []string) (map[string]storage.HolidayStat, error) {
	return nil, nil
}

func fare(d time.Time, price float64) storage.FlightPrice {
	return storage.FlightPrice{
		DepartureDate: d,
		Price:         price,
		TripType:      storage.TripRoundTrip,
		Cabin:         storage.CabinEconomy,
	}
}

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func seededStore(n int) *mockStore {
	s := &mockStore{}
	base := midnight(testNow).AddDate(0, 0, -90)
	for i := 0; i < n; i++ {
		d := base.AddDate(0, 0, i)
		price := 2000 + 300*float64(i%7) + 50*float64(int(d.Month()))
		s.rows = append(s.rows, fare(d, price))
	}
	return s
}

func newTestEngine(s *mockStore) *Engine {
	e := NewEngine(s, nil)
	e.Now = func() time.Time { return testNow }
	return e
}

func TestPredictWithTrainedModel(t *testing.T) {
	e := newTestEngine(seededStore(120))

	p, err := e.Predict(context.Background(), []string{"BKK"}, "HKT", storage.TripRoundTrip, midnight(testNow).AddDate(0, 0, 14))
	if err != nil {
		t.Fatal(err)
	}
	if p.PredictedPrice < 0 {
		t.Errorf("negative prediction %d", p.PredictedPrice)
	}
	if p.Confidence != "high" {
		t.Errorf("confidence = %q, want high for 14 days out", p.Confidence)
	}
	if p.MinPrice > p.PredictedPrice || p.MaxPrice < p.PredictedPrice {
		t.Errorf("bands %d..%d do not bracket %d", p.MinPrice, p.MaxPrice, p.PredictedPrice)
	}
}

func TestConfidenceTiers(t *testing.T) {
	tests := []struct {
		days   int
		want   string
		margin float64
	}{
		{10, "high", 0.15},
		{30, "high", 0.15},
		{45, "medium", 0.20},
		{60, "medium", 0.20},
		{120, "low", 0.25},
	}
	for _, tt := range tests {
		conf, margin := confidenceFor(tt.days)
		if conf != tt.want || margin != tt.margin {
			t.Errorf("confidenceFor(%d) = %q/%v, want %q/%v", tt.days, conf, margin, tt.want, tt.margin)
		}
	}
}

// Fewer than five training rows: single-date prediction is withheld but the
// graph still emits the full predicted horizon.
func TestSparseDataWithholdsPrediction(t *testing.T) {
	s := &mockStore{}
	for i := 0; i < 3; i++ {
		s.rows = append(s.rows, fare(midnight(testNow).AddDate(0, 0, -10+i), 2500))
	}
	e := newTestEngine(s)

	_, err := e.Predict(context.Background(), []string{"BKK"}, "HKT", storage.TripRoundTrip, midnight(testNow).AddDate(0, 0, 7))
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("Predict err = %v, want ErrModelUnavailable", err)
	}

	points, err := e.Graph(context.Background(), []string{"BKK"}, "HKT", storage.TripRoundTrip, 350)
	if err != nil {
		t.Fatal(err)
	}

	actuals, predicted := 0, 0
	for _, p := range points {
		if p.IsActual {
			actuals++
		} else {
			predicted++
		}
		if p.Low < 0 || p.Typical < 0 || p.High < 0 {
			t.Fatalf("negative point %+v", p)
		}
		if p.Low > p.Typical || p.Typical > p.High {
			t.Fatalf("band ordering violated: %+v", p)
		}
	}
	if actuals != 3 {
		t.Errorf("actuals = %d, want 3", actuals)
	}
	if predicted != 350 {
		t.Errorf("predicted points = %d, want 350", predicted)
	}
}

func TestNoDataModelUnavailable(t *testing.T) {
	e := newTestEngine(&mockStore{})
	_, err := e.Predict(context.Background(), []string{"BKK"}, "HKT", storage.TripRoundTrip, midnight(testNow).AddDate(0, 0, 7))
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
}

func TestGraphSkipsActualDates(t *testing.T) {
	e := newTestEngine(seededStore(120))
	points, err := e.Graph(context.Background(), []string{"BKK"}, "HKT", storage.TripRoundTrip, 60)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for _, p := range points {
		if seen[p.Date] {
			t.Fatalf("duplicate date %s", p.Date)
		}
		seen[p.Date] = true
	}
}

func TestGraphActualBands(t *testing.T) {
	s := &mockStore{rows: []storage.FlightPrice{
		fare(midnight(testNow).AddDate(0, 0, 2), 2000),
		fare(midnight(testNow).AddDate(0, 0, 2), 1500), // cheaper same-day fare wins
	}}
	e := newTestEngine(s)

	points, err := e.Graph(context.Background(), []string{"BKK"}, "HKT", storage.TripRoundTrip, 10)
	if err != nil {
		t.Fatal(err)
	}
	var actual *GraphPoint
	for i := range points {
		if points[i].IsActual {
			actual = &points[i]
		}
	}
	if actual == nil {
		t.Fatal("no actual point")
	}
	if actual.Typical != 1500 {
		t.Errorf("typical = %v, want cheapest 1500", actual.Typical)
	}
	if actual.Low != 1275 || actual.High != 1950 {
		t.Errorf("bands = %v/%v, want 1275/1950", actual.Low, actual.High)
	}
}

func TestTrendDirection(t *testing.T) {
	e := newTestEngine(seededStore(120))
	tr, err := e.TrendWindow(context.Background(), []string{"BKK"}, "HKT", storage.TripRoundTrip, 30)
	if err != nil {
		t.Fatal(err)
	}
	switch tr.Trend {
	case "increasing", "decreasing", "stable":
	default:
		t.Errorf("trend = %q", tr.Trend)
	}
	if tr.CurrentAvgPrice <= 0 {
		t.Errorf("current avg = %v", tr.CurrentAvgPrice)
	}
}

// A second request for the same key reuses the cached model rather than
// retraining.
func TestModelCached(t *testing.T) {
	s := seededStore(60)
	e := newTestEngine(s)

	ctx := context.Background()
	if _, err := e.Predict(ctx, []string{"BKK"}, "HKT", storage.TripRoundTrip, midnight(testNow).AddDate(0, 0, 5)); err != nil {
		t.Fatal(err)
	}
	key := modelKey([]string{"BKK"}, "HKT", storage.TripRoundTrip)
	e.mu.Lock()
	first := e.models[key]
	e.mu.Unlock()

	if _, err := e.Predict(ctx, []string{"BKK"}, "HKT", storage.TripRoundTrip, midnight(testNow).AddDate(0, 0, 6)); err != nil {
		t.Fatal(err)
	}
	e.mu.Lock()
	second := e.models[key]
	e.mu.Unlock()

	if first != second {
		t.Error("model retrained for cached key")
	}
}
