package retry

import (
	"context"
	"time"
)

// Func performs one attempt. attempt counts from zero. Returning
// shouldRetry=false ends the loop with err.
type Func func(attempt uint) (shouldRetry bool, err error)

// Policy bounds how often and how slowly an operation is repeated.
type Policy struct {
	MaxRetries uint
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

type Retryer struct {
	policy  Policy
	onRetry func(attempt uint, delay time.Duration, err error)
}

func NewRetryer(policy Policy) *Retryer {
	return &Retryer{policy: policy}
}

// OnRetry registers a hook called before each backoff sleep.
func (r *Retryer) OnRetry(fn func(attempt uint, delay time.Duration, err error)) *Retryer {
	r.onRetry = fn
	return r
}

// MaxAttempts is the total number of calls Do will make at most.
func (r *Retryer) MaxAttempts() uint {
	return r.policy.MaxRetries + 1
}

func (r *Retryer) Do(ctx context.Context, fn Func) error {
	var lastErr error

	for attempt := range r.MaxAttempts() {
		if err := ctx.Err(); err != nil {
			return err
		}

		shouldRetry, err := fn(attempt)
		if !shouldRetry {
			return err
		}
		lastErr = err

		if attempt == r.policy.MaxRetries {
			break
		}

		delay := r.backoff(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return lastErr
}

// backoff doubles BaseDelay per attempt and caps it at MaxDelay.
func (r *Retryer) backoff(attempt uint) time.Duration {
	if r.policy.BaseDelay <= 0 {
		return 0
	}
	delay := r.policy.BaseDelay
	for range attempt {
		delay *= 2
		if r.policy.MaxDelay > 0 && delay >= r.policy.MaxDelay {
			return r.policy.MaxDelay
		}
	}
	if r.policy.MaxDelay > 0 {
		return min(delay, r.policy.MaxDelay)
	}
	return delay
}
