// Package storage provides persistent storage for flight prices, weather
// observations, holiday statistics, and derived monthly aggregates.
package storage

import (
	"fmt"
	"strings"
	"time"
)

// TripType is the journey shape of a stored fare.
type TripType string

const (
	TripOneWay    TripType = "one-way"
	TripRoundTrip TripType = "round-trip"
)

// ParseTripType validates a trip-type string at ingress.
func ParseTripType(s string) (TripType, error) {
	switch TripType(strings.ToLower(strings.TrimSpace(s))) {
	case TripOneWay:
		return TripOneWay, nil
	case TripRoundTrip:
		return TripRoundTrip, nil
	}
	return "", fmt.Errorf("unknown trip type: %q", s)
}

// Cabin is the booking class of a stored fare.
type Cabin string

const (
	CabinEconomy  Cabin = "economy"
	CabinBusiness Cabin = "business"
	CabinFirst    Cabin = "first"
)

// ParseCabin validates a cabin string at ingress.
func ParseCabin(s string) (Cabin, error) {
	switch Cabin(strings.ToLower(strings.TrimSpace(s))) {
	case CabinEconomy:
		return CabinEconomy, nil
	case CabinBusiness:
		return CabinBusiness, nil
	case CabinFirst:
		return CabinFirst, nil
	}
	return "", fmt.Errorf("unknown cabin: %q", s)
}

// Season is the label ingestion stored alongside a fare.
type Season string

const (
	SeasonLow    Season = "low"
	SeasonNormal Season = "normal"
	SeasonHigh   Season = "high"
)

// ParseSeason validates a season string at ingress.
func ParseSeason(s string) (Season, error) {
	switch Season(strings.ToLower(strings.TrimSpace(s))) {
	case SeasonLow:
		return SeasonLow, nil
	case SeasonNormal:
		return SeasonNormal, nil
	case SeasonHigh:
		return SeasonHigh, nil
	}
	return "", fmt.Errorf("unknown season: %q", s)
}

// WeatherSource distinguishes archival observations from short-range
// forecast rows. Historical rows own the past through the cutover date and
// are never displaced by forecast rows.
type WeatherSource string

const (
	SourceHistorical WeatherSource = "historical"
	SourceForecast   WeatherSource = "forecast"
)

// ParseWeatherSource validates a weather source string at ingress.
func ParseWeatherSource(s string) (WeatherSource, error) {
	switch WeatherSource(strings.ToLower(strings.TrimSpace(s))) {
	case SourceHistorical:
		return SourceHistorical, nil
	case SourceForecast:
		return SourceForecast, nil
	}
	return "", fmt.Errorf("unknown weather source: %q", s)
}

// Route is an origin/destination airport pair, created lazily by the first
// query that mentions it.
type Route struct {
	ID          int64
	Origin      string
	Destination string
	CreatedAt   time.Time
}

// Airline is a carrier record.
type Airline struct {
	ID     int64
	Code   string
	Name   string
	NameTH string
}

// FlightPrice is a stored fare row. Prices already incorporate seasonal,
// holiday, and variation multipliers applied by the price-ingestion path;
// downstream components must never re-apply them.
type FlightPrice struct {
	ID            int64
	RouteID       int64
	Origin        string
	Destination   string
	AirlineID     int64
	AirlineName   string
	AirlineCode   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	TripType      TripType
	Cabin         Cabin
	Price         float64
	BasePrice     float64
	SeasonLabel   Season
	FlightNumber  string
	DepartureTime string
	ArrivalTime   string
	Duration      string
	Airplane      string
	CarbonGrams   int
	Legroom       string
	OftenDelayed  bool
}

// DailyWeather is one observed or forecast day for a province.
type DailyWeather struct {
	Province      string
	Date          time.Time
	TempMax       float64
	TempMin       float64
	TempAvg       float64
	Precipitation float64
	Humidity      *float64
	Source        WeatherSource
}

// MonthlyWeatherStat is the per-province monthly aggregate derived from
// daily rows. Rain is the monthly total in millimetres.
type MonthlyWeatherStat struct {
	Province     string
	Period       string // YYYY-MM
	AvgTemp      float64
	RainTotal    float64
	AvgHumidity  float64
	WeatherScore float64 // 0-100
	DaysCount    int
}

// HolidayEntry is one canonical holiday row inside a HolidayStat detail.
type HolidayEntry struct {
	Date     string `json:"date"` // YYYY-MM-DD
	Name     string `json:"name"`
	Category string `json:"category"` // national or regional
}

// HolidayStat is the per-month holiday aggregate, one row per calendar
// month nationwide.
type HolidayStat struct {
	Period            string // YYYY-MM
	HolidaysCount     int
	LongWeekendsCount int
	HolidayScore      float64 // 0-100
	Detail            []HolidayEntry
}

// RoutePriceStat is the precomputed monthly price percentile for a route.
type RoutePriceStat struct {
	RouteID         int64
	Period          string  // YYYY-MM
	PricePercentile float64 // 0-100
	AvgPrice        float64
}
