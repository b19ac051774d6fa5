// Package fetch issues scrape requests with bounded concurrency, retries
// and an overall deadline.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/address-scraper/internal/model"
	"github.com/sells-group/address-scraper/internal/resilience"
	"github.com/sells-group/address-scraper/pkg/scrapingdog"
)

// Config holds orchestrator defaults. A request's own MaxRetries, when
// set, or positive Timeout takes precedence.
type Config struct {
	// Concurrency bounds in-flight fetches. Default: 4.
	Concurrency int

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// RequestTimeout bounds a single attempt. Default: 100s.
	RequestTimeout time.Duration

	Backoff resilience.BackoffPolicy
}

// Orchestrator fans scrape requests out to a Fetcher.
type Orchestrator struct {
	fetcher Fetcher
	cfg     Config
	now     func() time.Time
}

// New creates an Orchestrator.
func New(f Fetcher, cfg Config) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 100 * time.Second
	}
	return &Orchestrator{fetcher: f, cfg: cfg, now: time.Now}
}

// FetchAll returns exactly one result per request, in request order. When
// ctx ends, requests still in flight or waiting for a slot are reported as
// Unreachable and FetchAll returns without waiting for them.
func (o *Orchestrator) FetchAll(ctx context.Context, reqs []model.ScrapeRequest) []model.ScrapeResult {
	results := make([]model.ScrapeResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	// The gate is per call so that concurrent runs do not starve each other.
	sem := semaphore.NewWeighted(int64(o.cfg.Concurrency))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = o.fetchOne(ctx, sem, req)
		}()
	}
	wg.Wait()

	var failed int
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	zap.L().Info("fetch: batch complete",
		zap.Int("requests", len(reqs)),
		zap.Int("failed", failed),
	)
	return results
}

func (o *Orchestrator) fetchOne(ctx context.Context, sem *semaphore.Weighted, req model.ScrapeRequest) model.ScrapeResult {
	start := o.now()
	res := model.ScrapeResult{SourceID: req.ID, Kind: req.Kind}

	if err := sem.Acquire(ctx, 1); err != nil {
		return abandoned(res, start, o.now, "deadline expired before request was issued")
	}
	defer sem.Release(1)

	retries := o.cfg.MaxRetries
	if req.MaxRetries != nil {
		retries = max(*req.MaxRetries, 0)
	}
	timeout := o.cfg.RequestTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	var lastStatus int
	resp, attempts, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts: retries + 1,
		Backoff:     o.cfg.Backoff,
		ShouldRetry: retryable,
		OnRetry:     resilience.RetryLogger("scrapingdog", string(req.Kind)),
	}, func(ctx context.Context) (*scrapingdog.Response, error) {
		resp, err := o.attempt(ctx, req, timeout)
		if resp != nil {
			lastStatus = resp.StatusCode
		}
		return resp, err
	})

	res.Attempts = attempts
	res.StatusCode = lastStatus
	res.Duration = o.now().Sub(start)

	switch {
	case err == nil:
		res.Content = resp.Body
		res.Header = resp.Header
	case ctx.Err() != nil:
		return abandoned(res, start, o.now, "deadline expired: "+ctx.Err().Error())
	case resilience.IsRateLimited(err):
		res.ErrKind = model.ErrRateLimited
		res.Err = err.Error()
	case isTransient(err):
		res.ErrKind = model.ErrUnreachable
		res.Err = err.Error()
	default:
		res.ErrKind = model.ErrInvalidRequest
		res.Err = err.Error()
	}

	if res.ErrKind != "" {
		zap.L().Warn("fetch: request failed",
			zap.String("source", req.ID),
			zap.String("kind", string(req.Kind)),
			zap.String("error_kind", string(res.ErrKind)),
			zap.Int("attempts", res.Attempts),
			zap.Int("status", res.StatusCode),
		)
	} else {
		zap.L().Debug("fetch: request complete",
			zap.String("source", req.ID),
			zap.Int("status", res.StatusCode),
			zap.Int("attempts", res.Attempts),
			zap.Duration("duration", res.Duration),
		)
	}
	return res
}

type attemptOutcome struct {
	resp *scrapingdog.Response
	err  error
}

// attempt runs one fetch under its own timeout and classifies the answer.
// The fetch runs on its own goroutine so that an expired deadline returns
// immediately even if the Fetcher ignores its context.
func (o *Orchestrator) attempt(ctx context.Context, req model.ScrapeRequest, timeout time.Duration) (*scrapingdog.Response, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan attemptOutcome, 1)
	go func() {
		resp, err := o.fetcher.Fetch(actx, req)
		ch <- attemptOutcome{resp: resp, err: err}
	}()

	var out attemptOutcome
	select {
	case out = <-ch:
	case <-actx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, resilience.NewTransientError(eris.Errorf("fetch: attempt timed out after %s", timeout), 0)
	}

	if out.err != nil {
		if errors.Is(out.err, ErrInvalidRequest) {
			return nil, out.err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, resilience.NewTransientError(eris.Wrap(out.err, "fetch: transport"), 0)
	}
	return out.resp, o.classify(out.resp)
}

// classify maps a status code to nil (success) or a typed error.
func (o *Orchestrator) classify(resp *scrapingdog.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return resilience.NewRateLimitError(
			fmt.Errorf("fetch: rate limited (status %d)", code),
			resilience.RetryAfter(resp.Header, o.now()),
		)
	case code == http.StatusRequestTimeout || code >= 500:
		return resilience.NewTransientError(fmt.Errorf("fetch: upstream status %d", code), code)
	case code >= 400:
		return fmt.Errorf("fetch: rejected with status %d: %w", code, ErrInvalidRequest)
	default:
		return resilience.NewTransientError(fmt.Errorf("fetch: unexpected status %d", code), code)
	}
}

func retryable(err error) bool {
	return resilience.IsRateLimited(err) || isTransient(err)
}

func isTransient(err error) bool {
	var te *resilience.TransientError
	return errors.As(err, &te)
}

func abandoned(res model.ScrapeResult, start time.Time, now func() time.Time, detail string) model.ScrapeResult {
	res.ErrKind = model.ErrUnreachable
	res.Err = detail
	res.Duration = now().Sub(start)
	res.Content = nil
	return res
}
