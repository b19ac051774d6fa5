// Package resilience provides retry and backoff patterns for external service calls.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// BackoffPolicy holds the two delay schedules used between attempts:
// exponential with jitter for rate-limit rejections, linear for transport
// failures.
type BackoffPolicy struct {
	// InitialBackoff is the base exponential delay. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps every computed delay, including upstream hints. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier scales the exponential delay after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds random jitter as a fraction of the exponential
	// delay (0.0 = no jitter, 0.5 = ±50%). Default: 0.25.
	JitterFraction float64

	// LinearStep is added per attempt on the linear schedule. Default: 1s.
	LinearStep time.Duration
}

// DefaultBackoffPolicy returns sensible defaults for a third-party API.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
		LinearStep:     time.Second,
	}
}

func (p BackoffPolicy) withDefaults() BackoffPolicy {
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	if p.LinearStep <= 0 {
		p.LinearStep = time.Second
	}
	return p
}

// Exponential returns the jittered delay before retry number attempt+1
// (attempt is zero-based).
func (p BackoffPolicy) Exponential(attempt int) time.Duration {
	p = p.withDefaults()
	delay := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}

	if p.JitterFraction > 0 {
		jitterRange := delay * p.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Linear returns LinearStep*(attempt+1), capped at MaxBackoff.
func (p BackoffPolicy) Linear(attempt int) time.Duration {
	p = p.withDefaults()
	delay := p.LinearStep * time.Duration(attempt+1)
	if delay > p.MaxBackoff {
		delay = p.MaxBackoff
	}
	return delay
}

// Delay picks the schedule for err: rate-limit rejections back off
// exponentially (or by the upstream's Retry-After hint when present),
// everything else linearly.
func (p BackoffPolicy) Delay(attempt int, err error) time.Duration {
	p = p.withDefaults()
	var rl *RateLimitError
	if errors.As(err, &rl) {
		if rl.RetryAfter > 0 {
			return min(rl.RetryAfter, p.MaxBackoff)
		}
		return p.Exponential(attempt)
	}
	return p.Linear(attempt)
}

// RetryConfig controls retry behavior.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// Backoff chooses the delay between attempts.
	Backoff BackoffPolicy

	// ShouldRetry optionally overrides the default transient-error check.
	// If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)
}

// DoVal executes fn with retry logic according to cfg and returns the value
// of the first successful call along with the number of attempts made.
// Only errors accepted by ShouldRetry (default IsTransient) are retried.
// Context cancellation stops retries immediately.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, int, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	attempts := 0
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		attempts++
		val, err := fn(ctx)
		if err == nil {
			return val, attempts, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, attempts, lastErr
		}
		if !shouldRetry(lastErr) {
			return zero, attempts, lastErr
		}
		// Don't sleep after the last attempt.
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(cfg.Backoff.Delay(attempt, lastErr))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, attempts, lastErr
		case <-timer.C:
		}
	}

	return zero, attempts, lastErr
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Bool("rate_limited", IsRateLimited(err)),
			zap.Error(err),
		)
	}
}
