package forecast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"fare_analytics/internal/storage"
)

// ErrModelUnavailable is returned when no usable training data exists for a
// route. Callers omit forecast fields rather than failing the request.
var ErrModelUnavailable = errors.New("forecast model unavailable")

// Store is the slice of the storage layer the engine reads.
type Store interface {
	ListFlightPrices(ctx context.Context, f storage.FlightPriceFilter) ([]storage.FlightPrice, error)
	HolidayStats(ctx context.Context, periods []string) (map[string]storage.HolidayStat, error)
}

// Training window and defaults.
const (
	trainLookbackDays = 180
	trainForwardDays  = 60
	cvFolds           = 5
	minTrainingRows   = 5
	DefaultGraphDays  = 350
	actualWindowDays  = 30
)

// Prediction is a single-date price forecast.
type Prediction struct {
	PredictedPrice int     `json:"predictedPrice"`
	Confidence     string  `json:"confidence"` // high, medium, low
	RSquared       float64 `json:"rSquared"`
	MinPrice       int     `json:"minPrice"`
	MaxPrice       int     `json:"maxPrice"`
}

// Trend summarizes the expected 30-day movement.
type Trend struct {
	Trend           string  `json:"trend"` // increasing, decreasing, stable
	ChangePercent   float64 `json:"changePercent"`
	CurrentAvgPrice float64 `json:"currentAvgPrice"`
	FutureAvgPrice  float64 `json:"futureAvgPrice"`
}

// GraphPoint is one day of the mixed actual/predicted curve.
type GraphPoint struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	Low      float64 `json:"low"`
	Typical  float64 `json:"typical"`
	High     float64 `json:"high"`
	IsActual bool    `json:"isActual"`
}

// Diagnostics carries cross-validation metrics for a trained model.
type Diagnostics struct {
	Rows      int
	RMSE      float64
	MAE       float64
	RSquared  float64
	TrainedAt time.Time
}

type model struct {
	gbm     *GBM
	diag    Diagnostics
	histAvg float64
	cal     *HolidayCalendar

	// reliable is false when the model trained on fewer rows than the
	// cross-validation minimum. Such a model still shapes the graph but
	// single-date predictions and trends are withheld.
	reliable bool
}

// Engine lazily trains one model per (route, trip type) and serves
// predictions, trends, and curves from it. Training is single-flight per
// key: a request arriving while a training is in progress proceeds without
// a model instead of starting a second one.
type Engine struct {
	store      Store
	modelStore *ModelStore // optional diagnostics persistence

	mu       sync.Mutex
	models   map[string]*model
	training map[string]bool

	Now func() time.Time
}

// NewEngine returns an engine over the store. modelStore may be nil.
func NewEngine(store Store, modelStore *ModelStore) *Engine {
	return &Engine{
		store:      store,
		modelStore: modelStore,
		models:     make(map[string]*model),
		training:   make(map[string]bool),
		Now:        time.Now,
	}
}

func modelKey(origins []string, destination string, tripType storage.TripType) string {
	return strings.Join(origins, ",") + ">" + destination + ":" + string(tripType)
}

// ensureModel returns the trained model for the key, training it on first
// use. Re-entry during a training is a no-op and reports the model as
// unavailable for this request.
func (e *Engine) ensureModel(ctx context.Context, origins []string, destination string, tripType storage.TripType) (*model, error) {
	key := modelKey(origins, destination, tripType)

	e.mu.Lock()
	if m, ok := e.models[key]; ok {
		e.mu.Unlock()
		if m == nil {
			return nil, ErrModelUnavailable
		}
		return m, nil
	}
	if e.training[key] {
		e.mu.Unlock()
		return nil, ErrModelUnavailable
	}
	e.training[key] = true
	e.mu.Unlock()

	m, err := e.train(ctx, origins, destination, tripType)

	e.mu.Lock()
	delete(e.training, key)
	if err == nil || errors.Is(err, ErrModelUnavailable) {
		e.models[key] = m // nil caches the unavailable verdict
	}
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m, nil
}

// train loads the training window, runs sequential 5-fold cross-validation,
// and keeps the fold with the lowest test RMSE.
func (e *Engine) train(ctx context.Context, origins []string, destination string, tripType storage.TripType) (*model, error) {
	today := midnight(e.Now())
	rows, err := e.store.ListFlightPrices(ctx, storage.FlightPriceFilter{
		Origins:     origins,
		Destination: destination,
		Start:       today.AddDate(0, 0, -trainLookbackDays),
		End:         today.AddDate(0, 0, trainForwardDays),
		TripType:    tripType,
		Cabin:       storage.CabinEconomy,
	})
	if err != nil {
		return nil, fmt.Errorf("forecast: load training rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrModelUnavailable
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].DepartureDate.Before(rows[j].DepartureDate) })

	cal := e.loadCalendar(ctx, rows)

	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	var priceSum float64
	for i, r := range rows {
		X[i] = cal.Features(r.DepartureDate, today)
		y[i] = r.Price
		priceSum += r.Price
	}

	m := &model{cal: cal, histAvg: priceSum / float64(len(rows))}
	m.diag.Rows = len(rows)
	m.diag.TrainedAt = e.Now()

	if len(rows) < minTrainingRows {
		gbm, err := TrainGBM(X, y, defaultRounds, defaultLearningRate, defaultMaxDepth)
		if err != nil {
			return nil, err
		}
		m.gbm = gbm
	} else {
		m.reliable = true
		gbm, diag, err := crossValidate(X, y)
		if err != nil {
			return nil, err
		}
		m.gbm = gbm
		diag.Rows = len(rows)
		diag.TrainedAt = m.diag.TrainedAt
		m.diag = diag
	}

	m.diag.RSquared = rSquared(m.gbm, X, y)

	if e.modelStore != nil {
		key := modelKey(origins, destination, tripType)
		if err := e.modelStore.SaveDiagnostics(key, m.diag); err != nil {
			log.Printf("forecast: persist diagnostics %s: %v", key, err)
		}
	}
	return m, nil
}

// crossValidate splits the date-ordered rows into sequential chunks,
// trains one model per fold, and returns the model whose held-out RMSE is
// lowest along with fold-averaged metrics.
func crossValidate(X [][]float64, y []float64) (*GBM, Diagnostics, error) {
	n := len(X)
	folds := cvFolds
	if n < folds {
		folds = n
	}
	chunk := (n + folds - 1) / folds

	var best *GBM
	bestRMSE := math.Inf(1)
	var sumRMSE, sumMAE float64
	ran := 0

	for f := 0; f < folds; f++ {
		lo := f * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}

		var trainX, testX [][]float64
		var trainY, testY []float64
		for i := 0; i < n; i++ {
			if i >= lo && i < hi {
				testX = append(testX, X[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, X[i])
				trainY = append(trainY, y[i])
			}
		}
		if len(trainX) == 0 {
			continue
		}

		gbm, err := TrainGBM(trainX, trainY, defaultRounds, defaultLearningRate, defaultMaxDepth)
		if err != nil {
			return nil, Diagnostics{}, err
		}
		rmse, mae := evaluate(gbm, testX, testY)
		sumRMSE += rmse
		sumMAE += mae
		ran++
		if rmse < bestRMSE {
			bestRMSE = rmse
			best = gbm
		}
	}

	if best == nil {
		gbm, err := TrainGBM(X, y, defaultRounds, defaultLearningRate, defaultMaxDepth)
		if err != nil {
			return nil, Diagnostics{}, err
		}
		return gbm, Diagnostics{}, nil
	}
	return best, Diagnostics{RMSE: sumRMSE / float64(ran), MAE: sumMAE / float64(ran)}, nil
}

func rSquared(m *GBM, X [][]float64, y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	mu := mean(y)
	var sse, sst float64
	for i := range y {
		d := m.Predict(X[i]) - y[i]
		sse += d * d
		t := y[i] - mu
		sst += t * t
	}
	if sst == 0 {
		return 0
	}
	r2 := 1 - sse/sst
	if r2 < 0 {
		return 0
	}
	return r2
}

// loadCalendar collects holiday dates covering the training and prediction
// horizon from stored holiday detail, falling back to the fixed recurring
// set.
func (e *Engine) loadCalendar(ctx context.Context, rows []storage.FlightPrice) *HolidayCalendar {
	today := e.Now()
	yearFrom, yearTo := today.Year()-1, today.Year()+2

	var periods []string
	for y := yearFrom; y <= yearTo; y++ {
		for m := 1; m <= 12; m++ {
			periods = append(periods, fmt.Sprintf("%04d-%02d", y, m))
		}
	}

	stats, err := e.store.HolidayStats(ctx, periods)
	if err != nil || len(stats) == 0 {
		return NewHolidayCalendar(nil, yearFrom, yearTo)
	}

	var dates []time.Time
	for _, s := range stats {
		for _, entry := range s.Detail {
			if d, err := time.Parse("2006-01-02", entry.Date); err == nil {
				dates = append(dates, d)
			}
		}
	}
	if len(dates) == 0 {
		return NewHolidayCalendar(nil, yearFrom, yearTo)
	}
	return NewHolidayCalendar(dates, yearFrom, yearTo)
}

// Predict forecasts the price for one departure date.
func (e *Engine) Predict(ctx context.Context, origins []string, destination string, tripType storage.TripType, date time.Time) (*Prediction, error) {
	m, err := e.ensureModel(ctx, origins, destination, tripType)
	if err != nil {
		return nil, err
	}
	if !m.reliable {
		return nil, ErrModelUnavailable
	}

	today := midnight(e.Now())
	price := m.predictPrice(date, today)

	daysOut := int(date.Sub(today).Hours() / 24)
	confidence, margin := confidenceFor(daysOut)

	return &Prediction{
		PredictedPrice: price,
		Confidence:     confidence,
		RSquared:       m.diag.RSquared,
		MinPrice:       int(math.Round(float64(price) * (1 - margin))),
		MaxPrice:       int(math.Round(float64(price) * (1 + margin))),
	}, nil
}

// predictPrice runs the model and applies the holiday post-multiplier. The
// result is never negative.
func (m *model) predictPrice(date, today time.Time) int {
	x := m.cal.Features(date, today)
	raw := math.Round(m.gbm.Predict(x))
	if raw < 0 {
		raw = 0
	}
	return int(raw * m.cal.Multiplier(date))
}

func confidenceFor(daysOut int) (string, float64) {
	switch {
	case daysOut <= 30:
		return "high", 0.15
	case daysOut <= 60:
		return "medium", 0.20
	default:
		return "low", 0.25
	}
}

// TrendWindow forecasts the average movement over the next windowDays
// against the recent stored average.
func (e *Engine) TrendWindow(ctx context.Context, origins []string, destination string, tripType storage.TripType, windowDays int) (*Trend, error) {
	m, err := e.ensureModel(ctx, origins, destination, tripType)
	if err != nil {
		return nil, err
	}
	if !m.reliable {
		return nil, ErrModelUnavailable
	}

	today := midnight(e.Now())

	rows, err := e.store.ListFlightPrices(ctx, storage.FlightPriceFilter{
		Origins:     origins,
		Destination: destination,
		Start:       today.AddDate(0, 0, -windowDays),
		End:         today,
		TripType:    tripType,
		Cabin:       storage.CabinEconomy,
	})
	if err != nil {
		return nil, fmt.Errorf("forecast: load recent rows: %w", err)
	}

	var current float64
	if len(rows) > 0 {
		for _, r := range rows {
			current += r.Price
		}
		current /= float64(len(rows))
	} else {
		current = m.histAvg
	}

	var future float64
	for d := 1; d <= windowDays; d++ {
		future += float64(m.predictPrice(today.AddDate(0, 0, d), today))
	}
	future /= float64(windowDays)

	change := 0.0
	if current > 0 {
		change = (future - current) / current * 100
	}

	trend := "stable"
	if change > 2 {
		trend = "increasing"
	} else if change < -2 {
		trend = "decreasing"
	}

	return &Trend{
		Trend:           trend,
		ChangePercent:   round2(change),
		CurrentAvgPrice: round2(current),
		FutureAvgPrice:  round2(future),
	}, nil
}

// Graph produces the mixed actual/predicted daily curve: stored prices for
// today ± 30 days, then predictions from tomorrow for days days, skipping
// dates already covered by actuals. When no model is available the
// predicted points fall back to the historical average shaped by holiday,
// weekend, and deterministic jitter factors.
func (e *Engine) Graph(ctx context.Context, origins []string, destination string, tripType storage.TripType, days int) ([]GraphPoint, error) {
	if days <= 0 {
		days = DefaultGraphDays
	}
	today := midnight(e.Now())
	routeKey := modelKey(origins, destination, tripType)

	m, err := e.ensureModel(ctx, origins, destination, tripType)
	if err != nil && !errors.Is(err, ErrModelUnavailable) {
		return nil, err
	}

	// Actual points: cheapest stored price per day in the window.
	rows, err := e.store.ListFlightPrices(ctx, storage.FlightPriceFilter{
		Origins:     origins,
		Destination: destination,
		Start:       today.AddDate(0, 0, -actualWindowDays),
		End:         today.AddDate(0, 0, actualWindowDays),
		TripType:    tripType,
		Cabin:       storage.CabinEconomy,
	})
	if err != nil {
		return nil, fmt.Errorf("forecast: load actuals: %w", err)
	}

	cheapest := make(map[string]float64)
	var histSum float64
	for _, r := range rows {
		key := r.DepartureDate.Format("2006-01-02")
		if v, ok := cheapest[key]; !ok || r.Price < v {
			cheapest[key] = r.Price
		}
		histSum += r.Price
	}
	histAvg := 0.0
	if len(rows) > 0 {
		histAvg = histSum / float64(len(rows))
	} else if m != nil {
		histAvg = m.histAvg
	}

	var points []GraphPoint
	actualDates := make([]string, 0, len(cheapest))
	for d := range cheapest {
		actualDates = append(actualDates, d)
	}
	sort.Strings(actualDates)
	for _, d := range actualDates {
		p := cheapest[d]
		points = append(points, GraphPoint{
			Date:     d,
			Low:      round2(p * 0.85),
			Typical:  round2(p),
			High:     round2(p * 1.30),
			IsActual: true,
		})
	}

	cal := NewHolidayCalendar(nil, today.Year()-1, today.Year()+2)
	if m != nil {
		cal = m.cal
	}

	for d := 1; d <= days; d++ {
		date := today.AddDate(0, 0, d)
		key := date.Format("2006-01-02")
		if _, ok := cheapest[key]; ok {
			continue
		}

		var typical float64
		if m != nil {
			typical = float64(m.predictPrice(date, today))
		} else {
			typical = fallbackPrice(histAvg, date, cal, routeKey)
		}

		_, margin := confidenceFor(d)
		points = append(points, GraphPoint{
			Date:     key,
			Low:      round2(typical * (1 - margin)),
			Typical:  round2(typical),
			High:     round2(typical * (1 + margin)),
			IsActual: false,
		})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

// fallbackPrice shapes the historical average when no model exists:
// holiday multiplier, weekend lift, deterministic jitter.
func fallbackPrice(histAvg float64, date time.Time, cal *HolidayCalendar, routeKey string) float64 {
	v := histAvg * cal.Multiplier(date)
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		v *= 1.05
	}
	return v * fallbackJitter(date, routeKey)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
