// Package geocode resolves free-text addresses to coordinates via the
// OpenWeatherMap direct geocoding API.
package geocode

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotFound is returned when the provider has no match for an address.
var ErrNotFound = errors.New("geocode: not found")

// Client geocodes addresses.
type Client interface {
	// Geocode geocodes a single address. It returns ErrNotFound when the
	// provider answered but had no match.
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Name      string  `json:"name,omitempty"`
	State     string  `json:"state,omitempty"`
	Country   string  `json:"country,omitempty"`
	Source    string  `json:"source,omitempty"`
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL overrides the OpenWeatherMap API base URL.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		g.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type geocoder struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new OpenWeatherMap geocoding Client.
func NewClient(apiKey string, opts ...Option) Client {
	g := &geocoder{
		baseURL:    "https://api.openweathermap.org",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}
