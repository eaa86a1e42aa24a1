package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultForecastURL = "https://api.openweathermap.org/data/2.5/forecast"

// ForecastClient fetches the short-range forecast from OpenWeatherMap. The
// 3-hourly feed covers roughly five days; entries are collapsed to daily
// extremes.
type ForecastClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewForecastClient returns a client for the given API key.
func NewForecastClient(apiKey string) *ForecastClient {
	return &ForecastClient{
		BaseURL: defaultForecastURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type owmResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			TempMin  float64 `json:"temp_min"`
			TempMax  float64 `json:"temp_max"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Rain struct {
			ThreeH float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
}

// Fetch retrieves the forecast for the coordinates and collapses it into
// daily rows (local Bangkok days).
func (c *ForecastClient) Fetch(ctx context.Context, lat, lon float64) ([]Day, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("forecast: missing API key")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("forecast: build request: %w", err)
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.4f", lat))
	q.Set("lon", fmt.Sprintf("%.4f", lon))
	q.Set("cnt", "40")
	q.Set("units", "metric")
	q.Set("appid", c.APIKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("forecast: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var or owmResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&or); err != nil {
		return nil, fmt.Errorf("forecast: decode: %w", err)
	}

	return collapseDaily(or), nil
}

// collapseDaily folds 3-hourly entries into per-day min/max/rain/humidity.
func collapseDaily(or owmResponse) []Day {
	loc := time.FixedZone("ICT", 7*3600)
	type acc struct {
		min, max    float64
		rain        float64
		humiditySum float64
		n           int
	}
	byDay := make(map[string]*acc)
	var order []string

	for _, e := range or.List {
		t := time.Unix(e.Dt, 0).In(loc)
		key := t.Format("2006-01-02")
		a, ok := byDay[key]
		if !ok {
			a = &acc{min: e.Main.TempMin, max: e.Main.TempMax}
			byDay[key] = a
			order = append(order, key)
		}
		if e.Main.TempMin < a.min {
			a.min = e.Main.TempMin
		}
		if e.Main.TempMax > a.max {
			a.max = e.Main.TempMax
		}
		a.rain += e.Rain.ThreeH
		a.humiditySum += e.Main.Humidity
		a.n++
	}

	days := make([]Day, 0, len(order))
	for _, key := range order {
		a := byDay[key]
		date, _ := time.Parse("2006-01-02", key)
		h := a.humiditySum / float64(a.n)
		days = append(days, Day{
			Date:          date,
			TempMax:       a.max,
			TempMin:       a.min,
			Precipitation: a.rain,
			Humidity:      &h,
		})
	}
	return days
}
