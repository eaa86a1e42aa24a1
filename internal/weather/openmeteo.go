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

// Day is one normalized day of weather for a province.
type Day struct {
	Date          time.Time
	TempMax       float64
	TempMin       float64
	Precipitation float64
	Humidity      *float64
}

const defaultArchiveURL = "https://archive-api.open-meteo.com/v1/archive"

// ArchiveClient fetches historical daily weather from the Open-Meteo
// archive API, one request per (province, calendar month).
type ArchiveClient struct {
	BaseURL string
	Client  *http.Client
}

// NewArchiveClient returns a client against the public archive endpoint.
func NewArchiveClient() *ArchiveClient {
	return &ArchiveClient{
		BaseURL: defaultArchiveURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type archiveResponse struct {
	Daily struct {
		Time             []string  `json:"time"`
		Temperature2mMax []float64 `json:"temperature_2m_max"`
		Temperature2mMin []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// FetchRange retrieves daily rows for [start, end] at the given coordinates.
// Callers chunk requests by calendar month.
func (c *ArchiveClient) FetchRange(ctx context.Context, lat, lon float64, start, end time.Time) ([]Day, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("archive: build request: %w", err)
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	q.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum")
	q.Set("timezone", "Asia/Bangkok")
	req.URL.RawQuery = q.Encode()

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("archive: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var ar archiveResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&ar); err != nil {
		return nil, fmt.Errorf("archive: decode: %w", err)
	}

	days := make([]Day, 0, len(ar.Daily.Time))
	for i, ts := range ar.Daily.Time {
		date, err := time.Parse("2006-01-02", ts)
		if err != nil {
			return nil, fmt.Errorf("archive: bad date %q: %w", ts, err)
		}
		d := Day{Date: date}
		if i < len(ar.Daily.Temperature2mMax) {
			d.TempMax = ar.Daily.Temperature2mMax[i]
		}
		if i < len(ar.Daily.Temperature2mMin) {
			d.TempMin = ar.Daily.Temperature2mMin[i]
		}
		if i < len(ar.Daily.PrecipitationSum) {
			d.Precipitation = ar.Daily.PrecipitationSum[i]
		}
		days = append(days, d)
	}
	return days, nil
}
