package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/address-scraper/internal/fetch"
	"github.com/sells-group/address-scraper/internal/model"
	"github.com/sells-group/address-scraper/pkg/postal"
)

const defaultViewport = "@4.2105,101.9758,15z"

// buildRequests turns q into scrape requests. URLs that cannot be
// normalized never reach the scrape API; they come back as already-failed
// results so they still appear in the failure manifest.
func (p *Pipeline) buildRequests(ctx context.Context, q model.Query) ([]model.ScrapeRequest, []model.ScrapeResult) {
	var reqs []model.ScrapeRequest
	var rejected []model.ScrapeResult

	kept, invalid := fetch.DedupeURLs(q.URLs)
	for i, u := range kept {
		reqs = append(reqs, model.ScrapeRequest{
			ID:     fmt.Sprintf("url-%d", i+1),
			Kind:   model.RequestKindPage,
			Target: u.Raw,
		})
	}
	for i, u := range invalid {
		rejected = append(rejected, model.ScrapeResult{
			SourceID: fmt.Sprintf("invalid-%d", i+1),
			Kind:     model.RequestKindPage,
			ErrKind:  model.ErrInvalidRequest,
			Err:      fmt.Sprintf("invalid url %q", u),
		})
	}

	if q.Term != "" {
		ll := p.viewport(ctx, q)
		for page := 0; page < p.pages(q); page++ {
			reqs = append(reqs, model.ScrapeRequest{
				ID:     fmt.Sprintf("maps-%d", page+1),
				Kind:   model.RequestKindMaps,
				Target: q.Term,
				Params: map[string]string{"ll": ll, "page": strconv.Itoa(page)},
			})
		}
	}
	return reqs, rejected
}

// pages is the number of maps result pages to request for q, at least
// one and at most the configured maximum.
func (p *Pipeline) pages(q model.Query) int {
	n := q.Pages
	if n < 1 {
		n = 1
	}
	if p.cfg.MaxPages > 0 && n > p.cfg.MaxPages {
		n = p.cfg.MaxPages
	}
	return n
}

// viewport centers the maps search. The place is q.Location, else the
// country or state the parser finds in the term. Without a geocoder, or
// when any step fails, the configured default is used.
func (p *Pipeline) viewport(ctx context.Context, q model.Query) string {
	fallback := p.cfg.DefaultViewport
	if fallback == "" {
		fallback = defaultViewport
	}
	if p.geocoder == nil {
		return fallback
	}

	place := q.Location
	if place == "" && p.parser != nil {
		components, err := p.parser.Parse(ctx, q.Term)
		if err != nil {
			zap.L().Debug("pipeline: term parse failed, using default viewport", zap.Error(err))
			return fallback
		}
		place = placeFromComponents(components)
	}
	if place == "" {
		return fallback
	}

	res, err := p.geocoder.Geocode(ctx, place)
	if err != nil {
		zap.L().Debug("pipeline: place geocode failed, using default viewport",
			zap.String("place", place), zap.Error(err))
		return fallback
	}
	return "@" + strconv.FormatFloat(res.Latitude, 'f', -1, 64) + "," +
		strconv.FormatFloat(res.Longitude, 'f', -1, 64) + ",15z"
}

func placeFromComponents(components []postal.Component) string {
	var state string
	for _, c := range components {
		switch c.Label {
		case "country":
			return c.Value
		case "state":
			if state == "" {
				state = c.Value
			}
		}
	}
	return state
}
