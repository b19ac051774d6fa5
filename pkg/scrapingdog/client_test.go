package scrapingdog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrape_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "https://acme.com/contact", r.URL.Query().Get("url"))
		assert.Equal(t, "true", r.URL.Query().Get("premium"))
		assert.Equal(t, "true", r.URL.Query().Get("dynamic"))

		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><address>221B Baker Street, London</address></html>"))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Scrape(context.Background(), "https://acme.com/contact", nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Contains(t, string(got.Body), "Baker Street")
	assert.Equal(t, "text/html", got.Header.Get("Content-Type"))
}

func TestScrape_RenderingDisabled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("premium"))
		assert.Empty(t, r.URL.Query().Get("dynamic"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRendering(false, false))
	_, err := client.Scrape(context.Background(), "https://acme.com", nil)
	require.NoError(t, err)
}

func TestScrape_NonOKStatusIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"rate limit exceeded"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Scrape(context.Background(), "https://acme.com", nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, got.StatusCode)
	assert.Equal(t, "3", got.Header.Get("Retry-After"))
}

func TestScrape_EmptyURL(t *testing.T) {
	t.Parallel()

	client := NewClient("test-key")
	_, err := client.Scrape(context.Background(), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty url")
}

func TestMaps_ParamsOverrideDefaults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/google_maps", r.URL.Path)
		assert.Equal(t, "confinement care", r.URL.Query().Get("query"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "@4.2105,101.9758,15z", r.URL.Query().Get("ll"))
		w.Write([]byte(`{"search_results":[]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Maps(context.Background(), "confinement care", map[string]string{
		"page": "2",
		"ll":   "@4.2105,101.9758,15z",
	})
	require.NoError(t, err)
}

func TestSearch_Defaults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/google", r.URL.Path)
		assert.Equal(t, "google.com", r.URL.Query().Get("domain"))
		assert.Equal(t, "my", r.URL.Query().Get("country"))
		w.Write([]byte(`{"organic_results":[]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "postpartum care", map[string]string{"country": "my"})
	require.NoError(t, err)
}

func TestScrape_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Scrape(ctx, "https://acme.com", nil)
	require.Error(t, err)
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()
	customClient := &http.Client{}
	c := NewClient("test-key", WithHTTPClient(customClient))
	hc := c.(*httpClient)
	assert.Equal(t, customClient, hc.http)
}

func TestWithRateLimit(t *testing.T) {
	t.Parallel()
	c := NewClient("test-key", WithRateLimit(0.5)).(*httpClient)
	assert.InDelta(t, 0.5, float64(c.limiter.Limit()), 0.001)
	assert.Equal(t, 1, c.limiter.Burst())
}
