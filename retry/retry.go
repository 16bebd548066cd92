// Package retry provides the bounded exponential backoff combinator used for
// calls to external collaborators (chain RPC, compliance, webhooks, cache).
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"sardis/errs"
)

// Policy describes a retry schedule. Non-retryable codes are always checked
// before retryable codes; an empty Retryable list means every code not listed
// as non-retryable may be retried.
type Policy struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          time.Duration
	Retryable       []errs.Code
	NonRetryable    []errs.Code
}

// DefaultPolicy mirrors the platform default for external calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2,
		Jitter:          250 * time.Millisecond,
		NonRetryable: []errs.Code{
			errs.CodeValidation,
			errs.CodePolicyDenied,
			errs.CodeComplianceDenied,
			errs.CodeReplayDetected,
			errs.CodeConflict,
		},
	}
}

// Delay returns the backoff before the given retry attempt (0-based), clamped
// to MaxDelay with symmetric jitter applied.
func (p Policy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	exp := p.ExponentialBase
	if exp <= 1 {
		exp = 2
	}
	delay := time.Duration(float64(base) * math.Pow(exp, float64(attempt)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(2*p.Jitter))) - p.Jitter
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

func (p Policy) retryable(err error) bool {
	code := errs.CodeOf(err)
	for _, blocked := range p.NonRetryable {
		if code == blocked {
			return false
		}
	}
	if len(p.Retryable) == 0 {
		return true
	}
	for _, allowed := range p.Retryable {
		if code == allowed {
			return true
		}
	}
	return false
}

// Do invokes fn until it succeeds, the policy is exhausted, a non-retryable
// error surfaces, or the context is cancelled. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	var last error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return errs.Wrap(errs.CodeTimeout, "retry cancelled", err)
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if !p.retryable(last) || attempt >= p.MaxRetries {
			return last
		}
		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return last
		case <-timer.C:
		}
	}
}
