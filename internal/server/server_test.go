package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/address-scraper/internal/model"
	"github.com/sells-group/address-scraper/internal/pipeline"
	"github.com/sells-group/address-scraper/internal/store"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, q model.Query) (*model.PipelineReport, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PipelineReport), args.Error(1)
}

type mockRuns struct {
	mock.Mock
}

func (m *mockRuns) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockRuns) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func sampleReport(q model.Query) *model.PipelineReport {
	return &model.PipelineReport{
		Query: q,
		Addresses: []model.NormalizedAddress{{
			Components:  []model.Component{{Label: "house_number", Value: "221b"}, {Label: "road", Value: "baker street"}},
			Canonical:   "221b baker street",
			Sources:     []string{"url-1"},
			Confidence:  0.7,
			Coordinates: &model.LatLon{Latitude: 51.52, Longitude: -0.15},
		}},
		Failures: []model.Failure{{SourceID: "url-2", Kind: model.ErrUnreachable}},
		Sources:  []string{"url-1", "url-2"},
		Counts:   model.ReportCounts{Requested: 2, Succeeded: 1, Failed: 1, Addresses: 1, Geocoded: 1},
	}
}

func newTestServer(t *testing.T, runner Runner, runs RunReader) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(runner, runs, Options{}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, new(mockRunner), nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestAddressesGet(t *testing.T) {
	runner := new(mockRunner)
	want := model.Query{
		Term:           "bakery london",
		URLs:           []string{"https://a.example/", "https://b.example/"},
		Pages:          2,
		FollowWebsites: true,
		Keywords:       []string{"bakery", "patisserie"},
	}
	runner.On("Run", mock.Anything, want).Return(sampleReport(want), nil)
	srv := newTestServer(t, runner, nil)

	resp, err := http.Get(srv.URL + "/api/v1/addresses?query=bakery+london&url=https://a.example/&url=https://b.example/&pages=2&follow=true&keyword=bakery&keyword=patisserie")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report model.PipelineReport
	decodeBody(t, resp, &report)
	require.Len(t, report.Addresses, 1)
	assert.Equal(t, "221b baker street", report.Addresses[0].Canonical)
	assert.Equal(t, []string{"url-1"}, report.Addresses[0].Sources)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, model.ErrUnreachable, report.Failures[0].Kind)
	runner.AssertExpectations(t)
}

func TestAddressesPost(t *testing.T) {
	runner := new(mockRunner)
	want := model.Query{URLs: []string{"https://a.example/"}, Keywords: []string{"postpartum"}}
	runner.On("Run", mock.Anything, want).Return(sampleReport(want), nil)
	srv := newTestServer(t, runner, nil)

	resp, err := http.Post(srv.URL+"/api/v1/addresses", "application/json",
		strings.NewReader(`{"urls":["https://a.example/"],"keywords":["postpartum"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report model.PipelineReport
	decodeBody(t, resp, &report)
	assert.Equal(t, 1, report.Counts.Addresses)
	runner.AssertExpectations(t)
}

func TestAddresses_EmptyResultIs200(t *testing.T) {
	runner := new(mockRunner)
	q := model.Query{Term: "nothing here"}
	runner.On("Run", mock.Anything, q).Return(&model.PipelineReport{
		Query:     q,
		Addresses: []model.NormalizedAddress{},
		Failures:  []model.Failure{{SourceID: "maps-1", Kind: model.ErrParseFailure}},
	}, nil)
	srv := newTestServer(t, runner, nil)

	resp, err := http.Get(srv.URL + "/api/v1/addresses?query=nothing+here")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, []any{}, body["addresses"])
}

func TestAddresses_BadRequests(t *testing.T) {
	runner := new(mockRunner)
	srv := newTestServer(t, runner, nil)

	tests := []struct {
		name string
		do   func() (*http.Response, error)
	}{
		{"missing query and url", func() (*http.Response, error) {
			return http.Get(srv.URL + "/api/v1/addresses")
		}},
		{"bad pages", func() (*http.Response, error) {
			return http.Get(srv.URL + "/api/v1/addresses?query=x&pages=abc")
		}},
		{"negative pages", func() (*http.Response, error) {
			return http.Get(srv.URL + "/api/v1/addresses?query=x&pages=-1")
		}},
		{"bad follow", func() (*http.Response, error) {
			return http.Get(srv.URL + "/api/v1/addresses?query=x&follow=maybe")
		}},
		{"malformed body", func() (*http.Response, error) {
			return http.Post(srv.URL+"/api/v1/addresses", "application/json", strings.NewReader(`{"query":`))
		}},
		{"unknown field", func() (*http.Response, error) {
			return http.Post(srv.URL+"/api/v1/addresses", "application/json", strings.NewReader(`{"q":"x"}`))
		}},
		{"blank url param", func() (*http.Response, error) {
			return http.Get(srv.URL + "/api/v1/addresses?url=%20")
		}},
		{"blank urls in body", func() (*http.Response, error) {
			return http.Post(srv.URL+"/api/v1/addresses", "application/json", strings.NewReader(`{"urls":[" ","\t"]}`))
		}},
		{"empty body query", func() (*http.Response, error) {
			return http.Post(srv.URL+"/api/v1/addresses", "application/json", strings.NewReader(`{"query":"  "}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tt.do()
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body map[string]string
			decodeBody(t, resp, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestAddresses_PipelineErrors(t *testing.T) {
	runner := new(mockRunner)
	runner.On("Run", mock.Anything, model.Query{Term: "bad"}).Return(nil, pipeline.ErrInvalidQuery)
	runner.On("Run", mock.Anything, model.Query{Term: "boom"}).Return(nil, errors.New("unexpected"))
	srv := newTestServer(t, runner, nil)

	resp, err := http.Get(srv.URL + "/api/v1/addresses?query=bad")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/addresses?query=boom")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestAddressesGeoJSON(t *testing.T) {
	runner := new(mockRunner)
	q := model.Query{Term: "bakery"}
	runner.On("Run", mock.Anything, q).Return(sampleReport(q), nil)
	srv := newTestServer(t, runner, nil)

	resp, err := http.Get(srv.URL + "/api/v1/addresses.geojson?query=bakery")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	decodeBody(t, resp, &fc)
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 1)
}

func TestRuns_List(t *testing.T) {
	runs := new(mockRuns)
	runs.On("ListRuns", mock.Anything, store.RunFilter{Status: model.RunStatusComplete, Limit: 5}).
		Return([]model.Run{{ID: "run-1", Status: model.RunStatusComplete}}, nil)
	srv := newTestServer(t, new(mockRunner), runs)

	resp, err := http.Get(srv.URL + "/api/v1/runs?status=complete&limit=5")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got []model.Run
	decodeBody(t, resp, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "run-1", got[0].ID)
	runs.AssertExpectations(t)
}

func TestRuns_ListEmpty(t *testing.T) {
	runs := new(mockRuns)
	runs.On("ListRuns", mock.Anything, store.RunFilter{}).Return(nil, nil)
	srv := newTestServer(t, new(mockRunner), runs)

	resp, err := http.Get(srv.URL + "/api/v1/runs")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(body))
}

func TestRuns_Get(t *testing.T) {
	runs := new(mockRuns)
	runs.On("GetRun", mock.Anything, "run-1").Return(&model.Run{ID: "run-1", Status: model.RunStatusRunning}, nil)
	runs.On("GetRun", mock.Anything, "missing").Return(nil, eris.Wrap(store.ErrNotFound, "sqlite: run"))
	runs.On("GetRun", mock.Anything, "broken").Return(nil, errors.New("db down"))
	srv := newTestServer(t, new(mockRunner), runs)

	resp, err := http.Get(srv.URL + "/api/v1/runs/run-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var run model.Run
	decodeBody(t, resp, &run)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	resp, err = http.Get(srv.URL + "/api/v1/runs/missing")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/runs/broken")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRuns_NotMountedWithoutStore(t *testing.T) {
	srv := newTestServer(t, new(mockRunner), nil)

	resp, err := http.Get(srv.URL + "/api/v1/runs")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, new(mockRunner), nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/addresses", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
