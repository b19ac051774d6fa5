// Package store persists pipeline runs and the geocode cache.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/address-scraper/internal/model"
	"github.com/sells-group/address-scraper/pkg/geocode"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the address pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, q model.Query) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, report *model.PipelineReport) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Geocode cache
	geocode.Cache

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// addressColumns are the run_addresses columns, in insert order.
var addressColumns = []string{
	"run_id", "position", "canonical", "components", "sources", "confidence", "latitude", "longitude",
}

// addressRows flattens a report's addresses for insertion.
func addressRows(runID string, report *model.PipelineReport) ([][]any, error) {
	rows := make([][]any, 0, len(report.Addresses))
	for i, a := range report.Addresses {
		components, err := json.Marshal(a.Components)
		if err != nil {
			return nil, eris.Wrap(err, "marshal components")
		}
		sources, err := json.Marshal(a.Sources)
		if err != nil {
			return nil, eris.Wrap(err, "marshal sources")
		}
		var lat, lon *float64
		if a.Coordinates != nil {
			lat, lon = &a.Coordinates.Latitude, &a.Coordinates.Longitude
		}
		rows = append(rows, []any{runID, i, a.Canonical, string(components), string(sources), a.Confidence, lat, lon})
	}
	return rows, nil
}

// expired reports whether an entry cached at cachedAt is older than maxAge.
// A zero maxAge never expires.
func expired(cachedAt time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && time.Since(cachedAt) > maxAge
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
