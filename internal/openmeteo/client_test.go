// In file: internal/openmeteo/client_test.go
package openmeteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient("it")
	c.GeocodingURL = srv.URL + "/v1/search"
	c.ForecastURL = srv.URL + "/v1/forecast"
	return c
}

func TestGeocode(t *testing.T) {
	tests := []struct {
		name       string
		city       string
		status     int
		body       string
		wantErr    bool
		wantNil    bool
		wantResult *Coordinates
	}{
		{
			name:   "top match parsed",
			city:   "Roma",
			status: http.StatusOK,
			body:   `{"results":[{"latitude":41.9,"longitude":12.5,"name":"Roma","country":"Italia"},{"latitude":43.2,"longitude":-75.4,"name":"Rome","country":"United States"}]}`,
			wantResult: &Coordinates{
				Latitude:  41.9,
				Longitude: 12.5,
				Name:      "Roma",
				Country:   "Italia",
			},
		},
		{
			name:    "zero matches is not an error",
			city:    "Atlantide",
			status:  http.StatusOK,
			body:    `{"generationtime_ms":0.5}`,
			wantNil: true,
		},
		{
			name:    "non-200 status",
			city:    "Roma",
			status:  http.StatusInternalServerError,
			body:    `boom`,
			wantErr: true,
		},
		{
			name:    "malformed body",
			city:    "Roma",
			status:  http.StatusOK,
			body:    `{"results":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery url.Values
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.Query()
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			coords, err := newTestClient(srv).Geocode(context.Background(), tt.city)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if coords != nil {
					t.Fatalf("expected nil coordinates, got %+v", coords)
				}
				return
			}
			if *coords != *tt.wantResult {
				t.Fatalf("coordinates = %+v, want %+v", coords, tt.wantResult)
			}

			if gotQuery.Get("name") != tt.city {
				t.Errorf("query name = %q, want %q", gotQuery.Get("name"), tt.city)
			}
			if gotQuery.Get("count") != "1" {
				t.Errorf("query count = %q, want 1", gotQuery.Get("count"))
			}
			if gotQuery.Get("language") != "it" {
				t.Errorf("query language = %q, want it", gotQuery.Get("language"))
			}
		})
	}
}

func TestGeocodeEmptyCity(t *testing.T) {
	c := NewClient("it")
	if _, err := c.Geocode(context.Background(), "   "); err == nil {
		t.Fatal("expected an error for an empty city name")
	}
}

func TestForecast(t *testing.T) {
	const payload = `{"current":{"temperature_2m":24.5,"relative_humidity_2m":60,"weather_code":1,"pressure_msl":1013.2,"wind_speed_10m":7.4},"daily":{"weather_code":[1,2,3],"temperature_2m_max":[26.0,25.1,24.0],"temperature_2m_min":[16.3,15.8,14.9]}}`

	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	data, err := newTestClient(srv).Forecast(context.Background(), 41.9, 12.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The payload must round-trip verbatim: no field dropped or renamed.
	if string(data) != payload {
		t.Fatalf("forecast payload was modified:\ngot  %s\nwant %s", data, payload)
	}

	if gotQuery.Get("latitude") != "41.9" {
		t.Errorf("query latitude = %q, want 41.9", gotQuery.Get("latitude"))
	}
	if gotQuery.Get("longitude") != "12.5" {
		t.Errorf("query longitude = %q, want 12.5", gotQuery.Get("longitude"))
	}
	if gotQuery.Get("timezone") != "auto" {
		t.Errorf("query timezone = %q, want auto", gotQuery.Get("timezone"))
	}
	if gotQuery.Get("current") == "" || gotQuery.Get("daily") == "" {
		t.Error("current and daily field lists must be requested")
	}
}

func TestForecastFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "non-200 status", status: http.StatusBadGateway, body: "oops"},
		{name: "invalid JSON", status: http.StatusOK, body: `{"current":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			if _, err := newTestClient(srv).Forecast(context.Background(), 41.9, 12.5); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
