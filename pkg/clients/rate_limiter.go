// Package clients provides rate limiting implementations
package clients

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting implementations.
type RateLimiter interface {
	// Allow checks if a request is allowed without blocking
	Allow() bool

	// Wait blocks until a request is allowed or ctx is done
	Wait(ctx context.Context) error

	// GetStats returns rate limiter statistics
	GetStats() RateLimiterStats
}

// RateLimiterStats provides statistics about rate limiter state
type RateLimiterStats struct {
	Rate            float64       `json:"rate"`
	Burst           int           `json:"burst"`
	AllowedRequests int64         `json:"allowed_requests"`
	WaitedRequests  int64         `json:"waited_requests"`
	TotalWaitTime   time.Duration `json:"total_wait_time"`
}

// TokenBucketRateLimiter wraps a token bucket with request statistics.
type TokenBucketRateLimiter struct {
	limiter *rate.Limiter

	allowedRequests int64
	waitedRequests  int64
	totalWaitTime   int64
}

// NewRateLimiter creates a rate limiter allowing perSecond requests per second
// with the given burst. A non-positive rate disables limiting.
func NewRateLimiter(perSecond float64, burst int) *TokenBucketRateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketRateLimiter{
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Allow checks if a request is allowed
func (tb *TokenBucketRateLimiter) Allow() bool {
	if tb.limiter.Allow() {
		atomic.AddInt64(&tb.allowedRequests, 1)
		return true
	}
	return false
}

// Wait blocks until a request is allowed
func (tb *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := tb.limiter.Wait(ctx); err != nil {
		return err
	}
	waited := time.Since(start)
	atomic.AddInt64(&tb.allowedRequests, 1)
	if waited > time.Millisecond {
		atomic.AddInt64(&tb.waitedRequests, 1)
		atomic.AddInt64(&tb.totalWaitTime, int64(waited))
	}
	return nil
}

// GetStats returns rate limiter statistics
func (tb *TokenBucketRateLimiter) GetStats() RateLimiterStats {
	r := float64(tb.limiter.Limit())
	if tb.limiter.Limit() == rate.Inf {
		r = 0
	}
	return RateLimiterStats{
		Rate:            r,
		Burst:           tb.limiter.Burst(),
		AllowedRequests: atomic.LoadInt64(&tb.allowedRequests),
		WaitedRequests:  atomic.LoadInt64(&tb.waitedRequests),
		TotalWaitTime:   time.Duration(atomic.LoadInt64(&tb.totalWaitTime)),
	}
}
