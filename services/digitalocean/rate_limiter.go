package digitalocean

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter for inference API
// requests. This helps prevent 429 rate limit errors from DigitalOcean's
// GenAI endpoints.
type RateLimiter struct {
	mu sync.Mutex

	tokens         float64       // Current number of tokens
	maxTokens      float64       // Maximum tokens (bucket size)
	refillRate     float64       // Tokens added per second
	lastRefillTime time.Time     // Last time tokens were refilled
	minInterval    time.Duration // Minimum interval between requests
}

// RateLimiterConfig holds configuration for the rate limiter
type RateLimiterConfig struct {
	MaxTokens   float64       // Max burst capacity
	RefillRate  float64       // Tokens per second
	MinInterval time.Duration // Minimum time between requests
}

// DefaultRateLimiterConfig returns conservative defaults for the inference
// API. Extraction calls are large; a burst of 3 with slow refill keeps a
// multi-paper backlog under the endpoint's limits.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MaxTokens:   3,
		RefillRate:  0.2, // 1 token per 5 seconds
		MinInterval: time.Second,
	}
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		tokens:         config.MaxTokens,
		maxTokens:      config.MaxTokens,
		refillRate:     config.RefillRate,
		lastRefillTime: time.Now(),
		minInterval:    config.MinInterval,
	}
}

// Wait blocks until a token is available for an API request.
// Returns an error if the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refillTokens()

		if r.tokens >= 1 {
			r.tokens--
			minInterval := r.minInterval
			r.mu.Unlock()

			// Enforce minimum interval between requests
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(minInterval):
				return nil
			}
		}

		waitTime := time.Duration(float64(time.Second) / r.refillRate)
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			// Try again after waiting
		}
	}
}

// refillTokens adds tokens based on elapsed time (must be called with lock held)
func (r *RateLimiter) refillTokens() {
	now := time.Now()

	elapsed := now.Sub(r.lastRefillTime).Seconds()
	r.tokens += elapsed * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefillTime = now
}

// SetBackoffMultiplier temporarily reduces the rate limit.
// Useful after receiving a 429 error - call with multiplier > 1 to slow down.
func (r *RateLimiter) SetBackoffMultiplier(multiplier float64) {
	if multiplier <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refillRate = r.refillRate / multiplier
	r.minInterval = time.Duration(float64(r.minInterval) * multiplier)
}
