// Package ratelimit paces outbound requests to exchange APIs. Every REST call
// made by an adapter passes through a RateLimiter so that symbol discovery,
// history backfills and price lookups never exceed a venue's published request
// budget, which would otherwise earn the process throttling or an IP ban.
//
// The implementation wraps Uber's token-bucket limiter behind a small
// interface so the pacing strategy can be swapped (or stubbed in tests)
// without touching the HTTP layer in pkg/common that consumes it.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/ratelimit"
)

// Rate expresses a request budget: Limit operations per Interval.
type Rate struct {
	// Limit is the number of operations allowed within Interval.
	Limit int

	// Interval is the window the limit applies to, e.g. time.Second or
	// time.Minute.
	Interval time.Duration
}

// RateLimiter blocks callers as needed to honor a configured Rate.
type RateLimiter interface {
	// Wait blocks until the next operation is permitted or ctx is cancelled.
	Wait(ctx context.Context) error

	// SetLimit replaces the current rate at runtime. Returns an error for a
	// non-positive limit or interval.
	SetLimit(limit Rate) error
}

// uberLimiter implements RateLimiter using go.uber.org/ratelimit's token
// bucket.
type uberLimiter struct {
	limiter ratelimit.Limiter
	rate    Rate
}

// NewTokenBucketLimiter returns a RateLimiter honoring the given rate. The
// rate is normalized to operations per second for the underlying bucket, so
// Rate{120, time.Minute} becomes 2 ops/sec.
func NewTokenBucketLimiter(rate Rate) RateLimiter {
	rps := float64(rate.Limit) / rate.Interval.Seconds()
	return &uberLimiter{
		limiter: ratelimit.New(int(rps)),
		rate:    rate,
	}
}

func (l *uberLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
	default:
		l.limiter.Take()
		return nil
	}
}

func (l *uberLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return fmt.Errorf("invalid rate limit: %+v", rate)
	}
	rps := float64(rate.Limit) / rate.Interval.Seconds()
	l.limiter = ratelimit.New(int(rps))
	l.rate = rate
	return nil
}
