// Package server builds the per-connection token bucket that protects the
// registry from clients flooding it with frames.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter allows cfg.Burst frames at once and refills the bucket
// completely over cfg.RefillInterval.
func newRateLimiter(cfg RateLimitConfig) *rate.Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}
	return rate.NewLimiter(rate.Every(interval/time.Duration(burst)), burst)
}
