package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ormsift/ormsift/internal/core"
)

// RetryPolicy turns a fallible operation into a bounded-retry operation
// with exponential delay and jitter. Only transient errors are retried;
// fatal errors propagate immediately. Semantic validation failures are
// never retried here; the reformat loop owns them.
type RetryPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // 0.0 to 1.0
	Multiplier   float64
}

// DefaultRetryPolicy is tuned for a chat endpoint: a handful of attempts
// with second-scale backoff capped well below a stage timeout.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  5,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.2,
		Multiplier:   2.0,
	}
}

// RetryPolicyOption overrides one knob of the default policy.
type RetryPolicyOption func(*RetryPolicy)

// WithMaxAttempts caps the total number of attempts, first try included.
func WithMaxAttempts(n int) RetryPolicyOption {
	return func(p *RetryPolicy) { p.MaxAttempts = n }
}

// WithBaseDelay sets the delay before the second attempt.
func WithBaseDelay(d time.Duration) RetryPolicyOption {
	return func(p *RetryPolicy) { p.BaseDelay = d }
}

// WithMaxDelay caps the grown delay.
func WithMaxDelay(d time.Duration) RetryPolicyOption {
	return func(p *RetryPolicy) { p.MaxDelay = d }
}

// WithJitter sets the fraction of the delay randomized in both directions.
func WithJitter(factor float64) RetryPolicyOption {
	return func(p *RetryPolicy) { p.JitterFactor = factor }
}

// NewRetryPolicy builds a policy from the defaults plus overrides.
func NewRetryPolicy(opts ...RetryPolicyOption) *RetryPolicy {
	p := DefaultRetryPolicy()
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RetryableFunc is the operation a policy drives.
type RetryableFunc func(ctx context.Context) error

// Do runs fn until it succeeds, fails fatally, or attempts run out, and
// reports how many attempts were made, the final one included.
func (p *RetryPolicy) Do(ctx context.Context, fn RetryableFunc) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return attempt - 1, ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}

		lastErr = err

		if !core.IsRetryable(err) {
			return attempt, err
		}

		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(p.CalculateDelay(attempt)):
		}
	}

	return p.MaxAttempts, &RetryExhaustedError{
		Attempts: p.MaxAttempts,
		LastErr:  lastErr,
	}
}

// CalculateDelay grows the base delay geometrically with the attempt
// number, caps it at MaxDelay, and spreads it by the jitter factor.
func (p *RetryPolicy) CalculateDelay(attempt int) time.Duration {
	grown := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	capped := math.Min(grown, float64(p.MaxDelay))
	if p.JitterFactor > 0 {
		capped += (rand.Float64()*2 - 1) * capped * p.JitterFactor
	}
	return time.Duration(math.Max(capped, 0))
}

// RetryExhaustedError reports that every attempt failed transiently.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsRetryExhausted reports whether err is a RetryExhaustedError.
func IsRetryExhausted(err error) bool {
	_, ok := err.(*RetryExhaustedError)
	return ok
}
