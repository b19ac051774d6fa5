// Package postal provides a client for a libpostal REST service
// (POST /parser and POST /expand).
package postal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/address-scraper/internal/resilience"
)

// Component is one labeled span of a parsed address.
type Component struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Parser splits free text into labeled address components.
type Parser interface {
	Parse(ctx context.Context, text string) ([]Component, error)
}

// Expander returns normalized spelling variants of an address string.
type Expander interface {
	Expand(ctx context.Context, text string) ([]string, error)
}

// Client is a libpostal service exposing both operations.
type Client interface {
	Parser
	Expander
}

// Option configures the postal client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-call timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the libpostal service at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type queryBody struct {
	Query string `json:"query"`
}

func (c *httpClient) Parse(ctx context.Context, text string) ([]Component, error) {
	body, err := c.post(ctx, "/parser", text)
	if err != nil {
		return nil, eris.Wrap(err, "postal: parse")
	}
	var out []Component
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "postal: unmarshal parse response")
	}
	return out, nil
}

func (c *httpClient) Expand(ctx context.Context, text string) ([]string, error) {
	body, err := c.post(ctx, "/expand", text)
	if err != nil {
		return nil, eris.Wrap(err, "postal: expand")
	}
	var out []string
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "postal: unmarshal expand response")
	}
	return out, nil
}

// post sends one query, retrying transient failures on a short linear
// schedule. libpostal loads its model lazily, so the first calls after a
// restart commonly fail.
func (c *httpClient) post(ctx context.Context, path, text string) ([]byte, error) {
	payload, err := json.Marshal(queryBody{Query: text})
	if err != nil {
		return nil, eris.Wrap(err, "marshal request")
	}

	body, _, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts: 3,
		Backoff: resilience.BackoffPolicy{
			LinearStep: 200 * time.Millisecond,
			MaxBackoff: 2 * time.Second,
		},
		OnRetry: resilience.RetryLogger("postal", path),
	}, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, path, payload)
	})
	return body, err
}

func (c *httpClient) do(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "send request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	statusErr := eris.Errorf("status %d: %s", resp.StatusCode, string(body))
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
	}
	return nil, statusErr
}
