package reader

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"modscout/config"
	"modscout/logger"
)

// newLimiter builds the outbound token bucket. A zero rate disables limiting.
func newLimiter(cfg config.RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter wait: %v", ErrProviderUnavailable, err)
	}
	return nil
}

// ReportRateLimitExceeded counts a 429 from a provider and emits the metric.
func ReportRateLimitExceeded(log *logger.Log, provider, reqURL string) {
	fields := logger.Fields{
		"provider": provider,
		"url":      reqURL,
	}
	l := log.WithComponent(provider)
	l.LogMetric(provider, "rate_limit_exceeded", int64(1), "counter", fields)
	l.WithFields(fields).Warn("rate limit exceeded")
}
