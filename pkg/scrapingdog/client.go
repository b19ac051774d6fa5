// Package scrapingdog provides a client for the ScrapingDog scrape, Google
// search and Google Maps APIs.
package scrapingdog

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the ScrapingDog operations. Each call is a single attempt:
// non-2xx statuses are returned in the Response, not as errors, so callers
// can apply their own retry policy.
type Client interface {
	// Scrape fetches the HTML of targetURL through the scrape endpoint.
	Scrape(ctx context.Context, targetURL string, params map[string]string) (*Response, error)
	// Maps runs a Google Maps query and returns the JSON payload.
	Maps(ctx context.Context, query string, params map[string]string) (*Response, error)
	// Search runs a Google organic search and returns the JSON payload.
	Search(ctx context.Context, query string, params map[string]string) (*Response, error)
}

// Response is the raw upstream answer.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Option configures the ScrapingDog client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the client-side requests-per-second budget.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			burst := max(int(rps), 1)
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithRendering toggles the premium proxy pool and JS rendering for Scrape.
func WithRendering(premium, dynamic bool) Option {
	return func(c *httpClient) {
		c.premium = premium
		c.dynamic = dynamic
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	premium bool
	dynamic bool
	http    *http.Client
	limiter *rate.Limiter
}

// maxBodyBytes bounds how much of a page is read into memory.
const maxBodyBytes = 8 << 20

// NewClient creates a new ScrapingDog client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.scrapingdog.com",
		premium: true,
		dynamic: true,
		http: &http.Client{
			Timeout: 100 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Scrape(ctx context.Context, targetURL string, params map[string]string) (*Response, error) {
	if targetURL == "" {
		return nil, eris.New("scrapingdog: scrape: empty url")
	}
	q := url.Values{"url": {targetURL}}
	if c.premium {
		q.Set("premium", "true")
	}
	if c.dynamic {
		q.Set("dynamic", "true")
	}
	return c.get(ctx, "/scrape", q, params)
}

func (c *httpClient) Maps(ctx context.Context, query string, params map[string]string) (*Response, error) {
	if query == "" {
		return nil, eris.New("scrapingdog: maps: empty query")
	}
	q := url.Values{"query": {query}}
	return c.get(ctx, "/google_maps", q, params)
}

func (c *httpClient) Search(ctx context.Context, query string, params map[string]string) (*Response, error) {
	if query == "" {
		return nil, eris.New("scrapingdog: search: empty query")
	}
	q := url.Values{
		"query":          {query},
		"results":        {strconv.Itoa(10)},
		"domain":         {"google.com"},
		"advance_search": {"true"},
	}
	return c.get(ctx, "/google", q, params)
}

// get issues one GET against path. params override the endpoint defaults.
func (c *httpClient) get(ctx context.Context, path string, q url.Values, params map[string]string) (*Response, error) {
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("api_key", c.apiKey)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "scrapingdog: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrapingdog: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "scrapingdog: request %s", path)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "scrapingdog: read %s body", path)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     resp.Header.Clone(),
	}, nil
}
