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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Enabled:           true,
		RequestsPerSecond: 1000,
		BurstCapacity:     10,
		MinDelay:          time.Millisecond,
		MaxRetries:        3,
		RetryBackoff:      time.Millisecond,
	}
}

func TestRateLimiter_DisabledPassesThrough(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Enabled: false})

	calls := 0
	result, err := rl.Do(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestRateLimiter_RetriesThrottlingErrors(t *testing.T) {
	rl := NewRateLimiter(fastLimiterConfig())

	calls := 0
	result, err := rl.Do(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("429 TooManyRequests")
		}
		return "eventually", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "eventually", result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, int64(2), rl.ThrottledCount())
}

func TestRateLimiter_GivesUpAfterMaxRetries(t *testing.T) {
	rl := NewRateLimiter(fastLimiterConfig())

	calls := 0
	_, err := rl.Do(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("ThrottlingException: slow down")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 4 retries")
	assert.Equal(t, 4, calls)
}

func TestRateLimiter_NonThrottlingErrorsNotRetried(t *testing.T) {
	rl := NewRateLimiter(fastLimiterConfig())

	calls := 0
	_, err := rl.Do(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("invalid request body")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(0), rl.ThrottledCount())
}

func TestRateLimiter_RespectsContextCancellation(t *testing.T) {
	cfg := fastLimiterConfig()
	cfg.RequestsPerSecond = 0.001
	cfg.BurstCapacity = 1
	rl := NewRateLimiter(cfg)

	// Drain the single burst token.
	_, err := rl.Do(context.Background(), func(context.Context) (interface{}, error) {
		return nil, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = rl.Do(ctx, func(context.Context) (interface{}, error) {
		t.Fatal("call should not run without a token")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsThrottlingError(t *testing.T) {
	assert.False(t, isThrottlingError(nil))
	assert.True(t, isThrottlingError(errors.New("status 429")))
	assert.True(t, isThrottlingError(errors.New("ThrottlingException")))
	assert.True(t, isThrottlingError(errors.New("hit the rate limit")))
	assert.False(t, isThrottlingError(errors.New("connection refused")))
}
