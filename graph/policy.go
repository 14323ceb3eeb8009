package graph

import (
	"math/rand"
	"time"
)

// RetryPolicy configures automatic retry of transient capability failures.
//
// When a node fails with a transient CapabilityError, the engine re-invokes
// it from its pre-invocation state after an exponential backoff delay with
// jitter. Exhausting MaxAttempts converts the failure to fatal.
type RetryPolicy struct {
	// MaxAttempts is the total number of invocation attempts, including
	// the first. Must be >= 1; 1 means no retries.
	MaxAttempts int

	// BaseDelay is the backoff base. The delay before retry attempt n is
	// min(BaseDelay * 2^n, MaxDelay) plus jitter in [0, BaseDelay).
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth. Zero means no cap.
	MaxDelay time.Duration

	// Jitter disables the random component when false, which makes retry
	// timing deterministic for tests.
	Jitter bool
}

// DefaultRetryPolicy is applied when no policy is configured: three
// attempts with a 100ms base and 5s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      true,
	}
}

// Validate checks the policy's constraints: MaxAttempts >= 1 and, when
// both delays are set, MaxDelay >= BaseDelay.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if p.MaxDelay > 0 && p.BaseDelay > 0 && p.MaxDelay < p.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// backoff computes the delay before retry attempt number attempt
// (zero-based). Exponential growth doubles the delay each retry; jitter in
// [0, base) spreads concurrent retries so they do not synchronize.
func (p RetryPolicy) backoff(attempt int, rng *rand.Rand) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}

	delay := p.BaseDelay * (1 << attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.Jitter {
		if rng != nil {
			delay += time.Duration(rng.Int63n(int64(p.BaseDelay)))
		} else {
			// Jitter for retry spreading, not security.
			delay += time.Duration(rand.Int63n(int64(p.BaseDelay))) // #nosec G404
		}
	}
	return delay
}
