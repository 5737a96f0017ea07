// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimiterConfig configures the provider rate limiter.
type RateLimiterConfig struct {
	// Enabled enables rate limiting.
	Enabled bool

	// RequestsPerSecond is the sustained request rate. Default: 2.
	RequestsPerSecond float64

	// BurstCapacity is the maximum burst of requests allowed. Default: 5.
	BurstCapacity int

	// MinDelay is the minimum spacing between requests. Default: 300ms.
	MinDelay time.Duration

	// MaxRetries is the retry budget for throttling errors. Default: 5.
	MaxRetries int

	// RetryBackoff is the initial backoff for retries, doubling each
	// attempt. Default: 1s.
	RetryBackoff time.Duration

	// Logger for throttle events.
	Logger *zap.Logger
}

// DefaultRateLimiterConfig returns conservative defaults suitable for
// hosted providers.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Enabled:           true,
		RequestsPerSecond: 2.0,
		BurstCapacity:     5,
		MinDelay:          300 * time.Millisecond,
		MaxRetries:        5,
		RetryBackoff:      time.Second,
		Logger:            zap.NewNop(),
	}
}

// RateLimiter implements token-bucket rate limiting with automatic retry
// on throttling errors. Analysis traffic is bursty (a batch every few
// minutes) so the limiter runs calls inline rather than through a queue.
type RateLimiter struct {
	config RateLimiterConfig

	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
	lastCall   time.Time

	throttled int64
}

// NewRateLimiter creates a rate limiter from config, applying defaults.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 2.0
	}
	if config.BurstCapacity <= 0 {
		config.BurstCapacity = 5
	}
	if config.MinDelay <= 0 {
		config.MinDelay = 300 * time.Millisecond
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &RateLimiter{
		config:     config,
		tokens:     float64(config.BurstCapacity),
		maxTokens:  float64(config.BurstCapacity),
		refillRate: config.RequestsPerSecond,
		lastRefill: time.Now(),
	}
}

// Do executes call under the rate limit, retrying throttling errors with
// exponential backoff.
func (rl *RateLimiter) Do(ctx context.Context, call func(context.Context) (interface{}, error)) (interface{}, error) {
	if !rl.config.Enabled {
		return call(ctx)
	}

	if err := rl.wait(ctx); err != nil {
		return nil, err
	}

	backoff := rl.config.RetryBackoff
	for attempt := 0; attempt <= rl.config.MaxRetries; attempt++ {
		result, err := call(ctx)
		if err == nil || !isThrottlingError(err) {
			return result, err
		}

		rl.mu.Lock()
		rl.throttled++
		rl.mu.Unlock()
		rl.config.Logger.Warn("llm request throttled, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", rl.config.MaxRetries),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("llm request failed after %d retries due to throttling", rl.config.MaxRetries+1)
}

// ThrottledCount reports how many calls hit a throttling error.
func (rl *RateLimiter) ThrottledCount() int64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.throttled
}

// wait blocks until a bucket token is available and MinDelay has elapsed
// since the previous call.
func (rl *RateLimiter) wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(rl.lastRefill).Seconds()
		rl.tokens = min(rl.maxTokens, rl.tokens+elapsed*rl.refillRate)
		rl.lastRefill = now

		if rl.tokens >= 1.0 {
			rl.tokens -= 1.0
			sinceLast := now.Sub(rl.lastCall)
			rl.lastCall = now
			rl.mu.Unlock()

			if pause := rl.config.MinDelay - sinceLast; pause > 0 {
				select {
				case <-time.After(pause):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		}
		rl.mu.Unlock()

		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// isThrottlingError recognizes rate-limit responses across providers.
func isThrottlingError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "ThrottlingException") ||
		strings.Contains(msg, "TooManyRequests") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "throttle")
}
