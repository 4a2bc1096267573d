// Package weather fetches historical hourly conditions from the Open-Meteo archive API.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"example.com/stravaweather/internal/domain"
)

// DefaultBaseURL is the public archive host. Commercial keys use the customer host.
const DefaultBaseURL = "https://archive-api.open-meteo.com"

const (
	archivePath  = "/v1/archive"
	hourLayout   = "2006-01-02T15:04"
	dateLayout   = "2006-01-02"
	hourlyFields = "temperature_2m,apparent_temperature,relative_humidity_2m,wind_speed_10m,weather_code"
	maxErrorBody = 512
)

// Client queries the archive endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a client. apiKey may be empty for the free tier.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type archiveResponse struct {
	Hourly *hourlySeries `json:"hourly"`
}

type hourlySeries struct {
	Time                []string   `json:"time"`
	Temperature2m       []*float64 `json:"temperature_2m"`
	ApparentTemperature []*float64 `json:"apparent_temperature"`
	RelativeHumidity2m  []*float64 `json:"relative_humidity_2m"`
	WindSpeed10m        []*float64 `json:"wind_speed_10m"`
	WeatherCode         []*float64 `json:"weather_code"`
}

func (h *hourlySeries) validate() error {
	n := len(h.Time)
	series := map[string]int{
		"temperature_2m":       len(h.Temperature2m),
		"apparent_temperature": len(h.ApparentTemperature),
		"relative_humidity_2m": len(h.RelativeHumidity2m),
		"wind_speed_10m":       len(h.WindSpeed10m),
		"weather_code":         len(h.WeatherCode),
	}
	for name, length := range series {
		if length != n {
			return fmt.Errorf("hourly.%s has %d values, hourly.time has %d", name, length, n)
		}
	}
	return nil
}

// Fetch returns conditions for the hour containing at, at the given coordinate.
func (c *Client) Fetch(ctx context.Context, loc domain.LatLng, at time.Time) (domain.WeatherSample, error) {
	const op = "fetch weather"

	at = at.UTC()
	day := at.Format(dateLayout)

	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', 4, 64))
	query.Set("longitude", strconv.FormatFloat(loc.Lng, 'f', 4, 64))
	query.Set("start_date", day)
	query.Set("end_date", day)
	query.Set("hourly", hourlyFields)
	query.Set("wind_speed_unit", "kmh")
	query.Set("temperature_unit", "celsius")
	query.Set("timezone", "GMT")
	if c.apiKey != "" {
		query.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+archivePath+"?"+query.Encode(), nil)
	if err != nil {
		return domain.WeatherSample{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error embeds the request URL, which carries the coordinates.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return domain.WeatherSample{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.WeatherSample{}, &domain.APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload archiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.WeatherSample{}, domain.Malformed(op, err)
	}
	if payload.Hourly == nil {
		return domain.WeatherSample{}, domain.Malformed(op, fmt.Errorf("missing hourly block"))
	}
	if err := payload.Hourly.validate(); err != nil {
		return domain.WeatherSample{}, domain.Malformed(op, err)
	}

	return sampleAt(payload.Hourly, at.Truncate(time.Hour).Format(hourLayout))
}

func sampleAt(h *hourlySeries, slot string) (domain.WeatherSample, error) {
	idx := -1
	for i, ts := range h.Time {
		if ts == slot {
			idx = i
			break
		}
	}
	if idx < 0 || h.Temperature2m[idx] == nil {
		return domain.WeatherSample{}, fmt.Errorf("hour %s: %w", slot, domain.ErrNoWeatherData)
	}

	sample := domain.NewWeatherSample()
	sample.TemperatureC = *h.Temperature2m[idx]
	sample.FeelsLikeC = valueOr(h.ApparentTemperature[idx], sample.TemperatureC)
	sample.WindKph = valueOr(h.WindSpeed10m[idx], math.NaN())
	sample.HumidityPct = valueOr(h.RelativeHumidity2m[idx], math.NaN())
	if code := h.WeatherCode[idx]; code != nil {
		sample.WeatherCode = int(*code)
		sample.ConditionText = ConditionText(sample.WeatherCode)
	}
	return sample, nil
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
