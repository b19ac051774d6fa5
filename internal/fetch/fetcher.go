package fetch

import (
	"context"
	"errors"

	"github.com/sells-group/address-scraper/internal/model"
	"github.com/sells-group/address-scraper/pkg/scrapingdog"
)

// ErrInvalidRequest marks a request rejected before it was sent.
var ErrInvalidRequest = errors.New("fetch: invalid request")

// Fetcher performs a single attempt of a scrape request. Non-2xx answers
// are returned as a Response, not an error; errors mean no answer.
type Fetcher interface {
	Fetch(ctx context.Context, req model.ScrapeRequest) (*scrapingdog.Response, error)
}

// ScrapingDogFetcher routes requests to the ScrapingDog endpoint matching
// their kind.
type ScrapingDogFetcher struct {
	client scrapingdog.Client
}

// NewScrapingDogFetcher wraps a ScrapingDog client.
func NewScrapingDogFetcher(c scrapingdog.Client) *ScrapingDogFetcher {
	return &ScrapingDogFetcher{client: c}
}

// Fetch implements Fetcher.
func (f *ScrapingDogFetcher) Fetch(ctx context.Context, req model.ScrapeRequest) (*scrapingdog.Response, error) {
	if req.Target == "" {
		return nil, ErrInvalidRequest
	}
	switch req.Kind {
	case model.RequestKindPage:
		return f.client.Scrape(ctx, req.Target, req.Params)
	case model.RequestKindMaps:
		return f.client.Maps(ctx, req.Target, req.Params)
	case model.RequestKindSearch:
		return f.client.Search(ctx, req.Target, req.Params)
	default:
		return nil, ErrInvalidRequest
	}
}
