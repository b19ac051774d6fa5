// Package pipeline runs one scrape-to-address query end to end: fetch,
// extract, normalize, aggregate and enrich.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/address-scraper/internal/aggregate"
	"github.com/sells-group/address-scraper/internal/config"
	"github.com/sells-group/address-scraper/internal/extract"
	"github.com/sells-group/address-scraper/internal/model"
	"github.com/sells-group/address-scraper/internal/store"
	"github.com/sells-group/address-scraper/pkg/geocode"
	"github.com/sells-group/address-scraper/pkg/postal"
)

// ErrInvalidQuery is returned by Run for a query that names nothing to
// fetch. It is the only error Run returns.
var ErrInvalidQuery = errors.New("pipeline: query needs a term or at least one url")

// Fetcher issues a batch of scrape requests, one result per request in
// request order. *fetch.Orchestrator implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, reqs []model.ScrapeRequest) []model.ScrapeResult
}

// Normalizer turns one candidate into a normalized address.
// *normalize.Normalizer implements it.
type Normalizer interface {
	Normalize(ctx context.Context, c model.AddressCandidate) (model.NormalizedAddress, error)
}

// Pipeline wires the stages together. Geocoder and store are optional.
type Pipeline struct {
	cfg        config.PipelineConfig
	fetcher    Fetcher
	extractor  *extract.Extractor
	normalizer Normalizer
	parser     postal.Parser
	geocoder   geocode.Client
	store      store.Store

	geocodeConcurrency int
	deadline           time.Duration
}

// New creates a Pipeline. parser is used to pick the maps viewport from
// the query term and may be nil.
func New(cfg config.PipelineConfig, f Fetcher, n Normalizer, parser postal.Parser) *Pipeline {
	return &Pipeline{
		cfg:                cfg,
		fetcher:            f,
		extractor:          extract.New(),
		normalizer:         n,
		parser:             parser,
		geocodeConcurrency: 4,
		deadline:           cfg.Deadline(),
	}
}

// SetGeocoder enables coordinate enrichment with at most concurrency
// lookups in flight.
func (p *Pipeline) SetGeocoder(gc geocode.Client, concurrency int) {
	p.geocoder = gc
	if concurrency > 0 {
		p.geocodeConcurrency = concurrency
	}
}

// SetStore enables run persistence.
func (p *Pipeline) SetStore(st store.Store) {
	p.store = st
}

// Run executes q and always returns a report unless q is invalid. Fetch,
// parse and geocode failures are recorded in the report.
//
// The overall deadline bounds fetching only: when it expires, requests
// still outstanding are reported Unreachable and whatever completed is
// still extracted, normalized and aggregated under ctx.
func (p *Pipeline) Run(ctx context.Context, q model.Query) (*model.PipelineReport, error) {
	if q.Empty() || q.Pages < 0 {
		return nil, ErrInvalidQuery
	}
	log := zap.L().With(zap.String("term", q.Term), zap.Int("urls", len(q.URLs)))
	log.Info("pipeline: starting run")
	start := time.Now()

	runID := p.createRun(ctx, q)

	fetchCtx := ctx
	if p.deadline > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.deadline)
		defer cancel()
	}

	reqs, rejected := p.buildRequests(fetchCtx, q)
	results := append(p.fetcher.FetchAll(fetchCtx, reqs), rejected...)

	if q.FollowWebsites {
		results = append(results, p.follow(fetchCtx, q, results)...)
	}

	outcomes := p.process(ctx, results)

	report := aggregate.Aggregate(outcomes, results)
	report.Query = q
	report.RunID = runID

	p.enrich(ctx, &report)

	p.completeRun(ctx, &report)

	log.Info("pipeline: run complete",
		zap.String("run_id", runID),
		zap.Int("sources", report.Counts.Requested),
		zap.Int("addresses", report.Counts.Addresses),
		zap.Int("failed", report.Counts.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &report, nil
}

func (p *Pipeline) createRun(ctx context.Context, q model.Query) string {
	if p.store == nil {
		return ""
	}
	run, err := p.store.CreateRun(ctx, q)
	if err != nil {
		zap.L().Warn("pipeline: failed to create run record", zap.Error(err))
		return ""
	}
	return run.ID
}

func (p *Pipeline) completeRun(ctx context.Context, report *model.PipelineReport) {
	if p.store == nil || report.RunID == "" {
		return
	}
	if err := p.store.CompleteRun(ctx, report.RunID, report); err != nil {
		zap.L().Warn("pipeline: failed to persist report",
			zap.String("run_id", report.RunID),
			zap.Error(eris.Wrap(err, "pipeline: complete run")),
		)
		if failErr := p.store.FailRun(ctx, report.RunID, err.Error()); failErr != nil {
			zap.L().Warn("pipeline: failed to mark run failed", zap.Error(failErr))
		}
	}
}
