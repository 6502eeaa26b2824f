// In file: internal/openmeteo/client.go

// Package openmeteo wraps the two Open-Meteo endpoints the assistant depends
// on: free-text geocoding (city name to coordinates) and the point forecast
// API (coordinates to current conditions plus a short daily series).
//
// Both endpoints are unauthenticated GETs. Lookup misses are not errors at
// this layer: a city with zero matches yields a nil result so callers can
// phrase a graceful "not found" reply instead of failing the conversation.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL  = "https://api.open-meteo.com/v1/forecast"

	// Fields requested from the forecast endpoint. The payload is handed to
	// the model verbatim, so this list is the single place that decides what
	// the model gets to see.
	currentFields = "temperature_2m,relative_humidity_2m,weather_code,pressure_msl,wind_speed_10m"
	dailyFields   = "weather_code,temperature_2m_max,temperature_2m_min"
)

// Coordinates is the top-ranked geocoding match for a place name.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Country   string  `json:"country"`
}

// Client performs the outbound Open-Meteo lookups. It holds its own
// configured HTTP client with a timeout so a slow provider cannot hang a
// request indefinitely. The base URLs are exported so tests can point the
// client at a local server.
type Client struct {
	HTTPClient   *http.Client
	GeocodingURL string
	ForecastURL  string
	// Language is the locale requested for geocoding display names
	// (e.g. "it" makes the provider return "Roma, Italia").
	Language string
}

// NewClient creates a client against the public Open-Meteo endpoints.
func NewClient(language string) *Client {
	return &Client{
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		GeocodingURL: defaultGeocodingURL,
		ForecastURL:  defaultForecastURL,
		Language:     language,
	}
}

// Geocode resolves a city name to its top match. A name with zero matches
// yields (nil, nil); transport, status and decoding failures yield an error.
// Callers are expected to treat both outcomes as "city not found" rather
// than aborting the conversation. A single outbound call, no retries.
func (c *Client) Geocode(ctx context.Context, city string) (*Coordinates, error) {
	if strings.TrimSpace(city) == "" {
		return nil, errors.New("city name cannot be empty")
	}

	q := url.Values{}
	q.Set("name", city)
	q.Set("count", "1")
	q.Set("language", c.Language)
	q.Set("format", "json")

	body, err := c.get(ctx, c.GeocodingURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Results []Coordinates `json:"results"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	if len(decoded.Results) == 0 {
		return nil, nil
	}

	top := decoded.Results[0]
	return &top, nil
}

// Forecast fetches current conditions and the daily min/max series for a
// coordinate pair, letting the provider infer the timezone from the location.
// The provider payload is returned verbatim; interpreting its fields is left
// entirely to the model.
func (c *Client) Forecast(ctx context.Context, latitude, longitude float64) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	q.Set("current", currentFields)
	q.Set("daily", dailyFields)
	q.Set("timezone", "auto")

	body, err := c.get(ctx, c.ForecastURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errors.New("forecast response is not valid JSON")
	}
	return json.RawMessage(body), nil
}

// get performs a single GET and returns the body on a 200 response.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Some providers throttle or block the default Go client identifier.
	req.Header.Set("User-Agent", "meteo-chat-backend/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
