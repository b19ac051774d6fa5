package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/address-scraper/internal/aggregate"
	"github.com/sells-group/address-scraper/internal/model"
)

// process extracts and normalizes every successful result. Sources run in
// parallel; outcomes are returned in result order, then candidate order.
func (p *Pipeline) process(ctx context.Context, results []model.ScrapeResult) []aggregate.Outcome {
	perSource := make([][]aggregate.Outcome, len(results))

	limit := p.cfg.NormalizeConcurrency
	if limit < 1 {
		limit = 8
	}
	g := new(errgroup.Group)
	g.SetLimit(limit)

	for i, r := range results {
		if !r.OK() {
			continue
		}
		g.Go(func() error {
			perSource[i] = p.processSource(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	var outcomes []aggregate.Outcome
	for _, o := range perSource {
		outcomes = append(outcomes, o...)
	}
	return outcomes
}

func (p *Pipeline) processSource(ctx context.Context, r model.ScrapeResult) []aggregate.Outcome {
	candidates := p.extractor.Extract(r)
	zap.L().Debug("pipeline: extracted candidates",
		zap.String("source", r.SourceID),
		zap.Int("candidates", len(candidates)),
	)

	outcomes := make([]aggregate.Outcome, 0, len(candidates))
	for _, c := range candidates {
		addr, err := p.normalizer.Normalize(ctx, c)
		if err != nil {
			outcomes = append(outcomes, aggregate.Outcome{SourceID: c.SourceID, Text: c.Text, Err: err})
			continue
		}
		outcomes = append(outcomes, aggregate.Outcome{SourceID: c.SourceID, Text: c.Text, Address: &addr})
	}
	return outcomes
}
