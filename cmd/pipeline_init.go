package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/address-scraper/internal/fetch"
	"github.com/sells-group/address-scraper/internal/normalize"
	"github.com/sells-group/address-scraper/internal/pipeline"
	"github.com/sells-group/address-scraper/internal/store"
	"github.com/sells-group/address-scraper/pkg/geocode"
	"github.com/sells-group/address-scraper/pkg/postal"
	"github.com/sells-group/address-scraper/pkg/scrapingdog"
)

// pipelineEnv holds the store and the pipeline built on top of it for the
// run and serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config, opens the store, builds the API clients
// and wires the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	return &pipelineEnv{Store: st, Pipeline: buildPipeline(st)}, nil
}

// buildPipeline wires clients from cfg. st backs the geocode cache and run
// history and may be nil.
func buildPipeline(st store.Store) *pipeline.Pipeline {
	sd := scrapingdog.NewClient(cfg.ScrapingDog.Key,
		scrapingdog.WithBaseURL(cfg.ScrapingDog.BaseURL),
		scrapingdog.WithRateLimit(cfg.ScrapingDog.RateLimit),
		scrapingdog.WithRendering(cfg.ScrapingDog.Premium, cfg.ScrapingDog.Dynamic),
	)
	orchestrator := fetch.New(fetch.NewScrapingDogFetcher(sd), fetch.Config{
		Concurrency:    cfg.Pipeline.Concurrency,
		MaxRetries:     cfg.Pipeline.MaxRetries,
		RequestTimeout: cfg.Pipeline.RequestTimeout(),
		Backoff:        cfg.Pipeline.Backoff(),
	})

	var postalOpts []postal.Option
	if cfg.Postal.TimeoutSecs > 0 {
		postalOpts = append(postalOpts, postal.WithTimeout(time.Duration(cfg.Postal.TimeoutSecs)*time.Second))
	}
	pc := postal.NewClient(cfg.Postal.BaseURL, postalOpts...)
	normalizer := normalize.New(pc, pc, normalize.WithPolicy(normalize.Policy(cfg.Pipeline.CanonicalPolicy)))

	p := pipeline.New(cfg.Pipeline, orchestrator, normalizer, pc)

	if gc := buildGeocoder(st); gc != nil {
		p.SetGeocoder(gc, cfg.Geocode.Concurrency)
	} else {
		zap.L().Info("geocoding disabled, no geocode.key configured")
	}
	if st != nil {
		p.SetStore(st)
	}
	return p
}

// buildGeocoder returns nil when no key is configured. With a store the
// client is wrapped in the persistent cache.
func buildGeocoder(st store.Store) geocode.Client {
	if cfg.Geocode.Key == "" {
		return nil
	}
	opts := []geocode.Option{geocode.WithBaseURL(cfg.Geocode.BaseURL)}
	if cfg.Geocode.RateLimit > 0 {
		opts = append(opts, geocode.WithRateLimit(cfg.Geocode.RateLimit))
	}
	gc := geocode.NewClient(cfg.Geocode.Key, opts...)
	if st == nil {
		return gc
	}
	ttl := time.Duration(cfg.Geocode.CacheTTLDays) * 24 * time.Hour
	return geocode.NewCachedClient(gc, st, ttl)
}
