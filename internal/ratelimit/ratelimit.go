package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limit allows Count requests per Per, refilled evenly with a burst of Count.
type Limit struct {
	Count int
	Per   time.Duration
}

func (l Limit) String() string {
	return fmt.Sprintf("%d/%s", l.Count, l.Per)
}

func (l Limit) limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(l.Per/time.Duration(l.Count)), l.Count)
}

// RateLimiter admits a request only when every configured limit has a token.
type RateLimiter struct {
	limiters []*rate.Limiter
	now      func() time.Time
}

// NewRateLimiter ignores limits with a non-positive Count or Per. With no
// usable limits Wait never blocks.
func NewRateLimiter(limits ...Limit) *RateLimiter {
	r := &RateLimiter{now: time.Now}
	for _, l := range limits {
		if l.Count <= 0 || l.Per <= 0 {
			continue
		}
		r.limiters = append(r.limiters, l.limiter())
	}
	return r
}

// Wait reserves a token from every limit and sleeps until the slowest one is
// due. On cancellation all reservations are handed back.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := r.now()
	reservations, delay := r.reserve(now)
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		cancelAll(reservations, r.now())
		return ctx.Err()
	}
}

// allow takes a token from every limit only if none of them would delay.
func (r *RateLimiter) allow() bool {
	now := r.now()
	reservations, delay := r.reserve(now)
	if delay > 0 {
		cancelAll(reservations, now)
		return false
	}
	return true
}

func (r *RateLimiter) reserve(now time.Time) ([]*rate.Reservation, time.Duration) {
	reservations := make([]*rate.Reservation, 0, len(r.limiters))
	var delay time.Duration
	for _, l := range r.limiters {
		res := l.ReserveN(now, 1)
		reservations = append(reservations, res)
		if d := res.DelayFrom(now); d > delay {
			delay = d
		}
	}
	return reservations, delay
}

func cancelAll(reservations []*rate.Reservation, at time.Time) {
	for _, res := range reservations {
		res.CancelAt(at)
	}
}
