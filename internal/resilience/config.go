package resilience

import (
	"time"
)

// FromBackoffConfig converts millisecond config values to a BackoffPolicy,
// keeping defaults for anything unset.
func FromBackoffConfig(initialBackoffMs, maxBackoffMs, linearStepMs int, multiplier, jitterFraction float64) BackoffPolicy {
	p := DefaultBackoffPolicy()
	if initialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if linearStepMs > 0 {
		p.LinearStep = time.Duration(linearStepMs) * time.Millisecond
	}
	if multiplier > 0 {
		p.Multiplier = multiplier
	}
	if jitterFraction >= 0 {
		p.JitterFraction = jitterFraction
	}
	return p
}
