// Package analysis orchestrates one flight-price query: it resolves
// locations, expands the date window, classifies seasons, and assembles the
// recommendation, comparison, chart, and forecast artifacts.
package analysis

import (
	"fare_analytics/internal/forecast"
	"fare_analytics/internal/pricing"
)

// DurationRange is the trip length the traveller will accept, in days.
type DurationRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Avg is the midpoint trip duration.
func (d DurationRange) Avg() float64 {
	return (float64(d.Min) + float64(d.Max)) / 2
}

// Request is one analysis query.
type Request struct {
	Origin           string        `json:"origin"`
	Destination      string        `json:"destination"`
	TripType         string        `json:"tripType"`
	DurationRange    DurationRange `json:"durationRange"`
	SelectedAirlines []string      `json:"selectedAirlines"`
	StartDate        string        `json:"startDate"` // YYYY-MM-DD, optional
	EndDate          string        `json:"endDate"`   // YYYY-MM-DD, optional
	Passengers       pricing.Mix   `json:"passengers"`
	Cabin            string        `json:"cabin"`
}

// RecommendedPeriod is the system's suggested travel slot.
type RecommendedPeriod struct {
	StartDate  string `json:"startDate"` // localized Thai date
	EndDate    string `json:"endDate"`
	ReturnDate string `json:"returnDate"`
	Price      int    `json:"price"`
	Airline    string `json:"airline"`
	Season     string `json:"season"`
	Savings    int    `json:"savings"`
}

// PriceRangeOut is a displayed min/max pair.
type PriceRangeOut struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// BestDealOut is the displayed cheapest fare of a season.
type BestDealOut struct {
	Dates   string `json:"dates"`
	Price   int    `json:"price"`
	Airline string `json:"airline"`
}

// SeasonOut is one season bucket of the response.
type SeasonOut struct {
	Type        string        `json:"type"`
	Months      []string      `json:"months"` // localized Thai month names
	PriceRange  PriceRangeOut `json:"priceRange"`
	BestDeal    *BestDealOut  `json:"bestDeal,omitempty"`
	Description string        `json:"description"`
}

// NeighborPrice is one side of the before/after comparison.
type NeighborPrice struct {
	Date       string  `json:"date"` // YYYY-MM-DD
	Price      int     `json:"price"`
	Difference int     `json:"difference"`
	Percentage float64 `json:"percentage"`
}

// PriceComparison relates the anchor date to one week either side.
type PriceComparison struct {
	BasePrice   int           `json:"basePrice,omitempty"`
	BaseAirline string        `json:"baseAirline,omitempty"`
	IfGoBefore  NeighborPrice `json:"ifGoBefore"`
	IfGoAfter   NeighborPrice `json:"ifGoAfter"`
}

// ChartDay is one day of the anchor month's price chart. Price 0 with
// HasData false marks a day without fares.
type ChartDay struct {
	StartDate  string `json:"startDate"` // YYYY-MM-DD
	ReturnDate string `json:"returnDate,omitempty"`
	Price      int    `json:"price"`
	Season     string `json:"season"`
	Duration   int    `json:"duration,omitempty"`
	HasData    bool   `json:"hasData"`
}

// CatalogRow mirrors a stored fare with display pricing applied and carbon
// converted to kilograms.
type CatalogRow struct {
	Airline       string  `json:"airline"`
	AirlineCode   string  `json:"airlineCode"`
	FlightNumber  string  `json:"flightNumber"`
	DepartureDate string  `json:"departureDate"`
	ReturnDate    string  `json:"returnDate,omitempty"`
	TripType      string  `json:"tripType"`
	Cabin         string  `json:"cabin"`
	Price         int     `json:"price"`
	BasePrice     float64 `json:"basePrice"`
	Season        string  `json:"season"`
	DepartureTime string  `json:"departureTime"`
	ArrivalTime   string  `json:"arrivalTime"`
	Duration      string  `json:"duration"`
	Airplane      string  `json:"airplane"`
	CarbonKg      float64 `json:"carbonEmissionsKg"`
	Legroom       string  `json:"legroom"`
	OftenDelayed  bool    `json:"oftenDelayed"`
}

// Result is the full analysis response.
type Result struct {
	RecommendedPeriod RecommendedPeriod     `json:"recommendedPeriod"`
	Seasons           []SeasonOut           `json:"seasons"`
	PriceComparison   PriceComparison       `json:"priceComparison"`
	PriceChartData    []ChartDay            `json:"priceChartData"`
	PricePrediction   *forecast.Prediction  `json:"pricePrediction,omitempty"`
	PriceTrend        *forecast.Trend       `json:"priceTrend,omitempty"`
	PriceGraphData    []forecast.GraphPoint `json:"priceGraphData"`
	FlightPrices      []CatalogRow          `json:"flightPrices"`
}

// seasonDescriptions are the fixed per-type blurbs shown with each bucket.
var seasonDescriptions = map[string]string{
	"low":    "ช่วงราคาประหยัด เหมาะกับการเดินทางแบบยืดหยุ่น",
	"normal": "ช่วงราคาปานกลาง สมดุลระหว่างราคากับบรรยากาศ",
	"high":   "ช่วงราคาสูง ตรงกับเทศกาลและวันหยุดยาว",
}
