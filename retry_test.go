// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package skad3

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    1 * time.Microsecond, // Minimal delay for fast tests
		MaxBackoff:        10 * time.Microsecond,
		BackoffMultiplier: 2.0,
		RetryTimeout:      time.Second,
	}
}

func TestRetryConfig_DefaultRetryConfig(t *testing.T) {
	t.Parallel()

	config := DefaultRetryConfig()

	assert.Equal(t, 3, config.MaxAttempts)
	assert.Greater(t, config.InitialBackoff, time.Duration(0))
	assert.Greater(t, config.MaxBackoff, config.InitialBackoff)
	assert.Greater(t, config.BackoffMultiplier, 1.0)
	assert.GreaterOrEqual(t, config.Jitter, 0.0)
	assert.LessOrEqual(t, config.Jitter, 1.0)
	assert.Greater(t, config.RetryTimeout, time.Duration(0))
	assert.Nil(t, config.ShouldRetry)
}

func TestNextBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		config   *RetryConfig
		name     string
		current  time.Duration
		expected time.Duration
	}{
		{
			name:     "Normal exponential growth",
			current:  100 * time.Millisecond,
			config:   &RetryConfig{BackoffMultiplier: 2.0, MaxBackoff: 5 * time.Second},
			expected: 200 * time.Millisecond,
		},
		{
			name:     "Hits maximum backoff limit",
			current:  3 * time.Second,
			config:   &RetryConfig{BackoffMultiplier: 2.0, MaxBackoff: 5 * time.Second},
			expected: 5 * time.Second,
		},
		{
			name:     "Fractional multiplier",
			current:  200 * time.Millisecond,
			config:   &RetryConfig{BackoffMultiplier: 1.5, MaxBackoff: 10 * time.Second},
			expected: 300 * time.Millisecond,
		},
		{
			name:     "No maximum",
			current:  10 * time.Second,
			config:   &RetryConfig{BackoffMultiplier: 3.0},
			expected: 30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, nextBackoff(tt.current, tt.config))
		})
	}
}

func TestJitter(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	assert.Equal(t, base, jitter(base, 0))

	for range 100 {
		got := jitter(base, 0.5)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, base+base/2)
	}
}

func TestRetry(t *testing.T) {
	t.Parallel()

	desync := &FrameDesyncError{Reason: "bad STX", Length: -1}

	tests := []struct {
		wantErr   error
		name      string
		results   []error
		attempts  int
		wantCalls int
	}{
		{name: "success first time", attempts: 3, results: []error{nil}, wantCalls: 1},
		{name: "desync then success", attempts: 3, results: []error{desync, nil}, wantCalls: 2},
		{
			name:      "exhausted",
			attempts:  3,
			results:   []error{desync, desync, desync, nil},
			wantCalls: 3,
			wantErr:   ErrFrameDesync,
		},
		{
			name:      "not retryable",
			attempts:  3,
			results:   []error{ErrInvalidParameter, nil},
			wantCalls: 1,
			wantErr:   ErrInvalidParameter,
		},
		{
			name:      "single attempt",
			attempts:  1,
			results:   []error{desync, nil},
			wantCalls: 1,
			wantErr:   ErrFrameDesync,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := Retry(context.Background(), fastRetryConfig(tt.attempts), func() error {
				result := tt.results[calls]
				calls++
				return result
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestRetry_OnRetryAndShouldRetry(t *testing.T) {
	t.Parallel()

	custom := errors.New("card busy")
	config := fastRetryConfig(4)
	config.ShouldRetry = func(err error) bool { return errors.Is(err, custom) }

	var next []int
	config.OnRetry = func(attempt int, err error) {
		require.ErrorIs(t, err, custom)
		next = append(next, attempt)
	}

	calls := 0
	err := Retry(context.Background(), config, func() error {
		calls++
		if calls < 3 {
			return custom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, next)
}

func TestRetry_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastRetryConfig(3), func() error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRetry_TimeoutReturnsLastError(t *testing.T) {
	t.Parallel()

	config := fastRetryConfig(100)
	config.InitialBackoff = 20 * time.Millisecond
	config.MaxBackoff = 20 * time.Millisecond
	config.RetryTimeout = 30 * time.Millisecond

	err := Retry(context.Background(), config, func() error {
		return NewTimeoutError("read", "sim")
	})
	require.ErrorIs(t, err, ErrTransportTimeout)
}

func TestRetry_RecoversFromCorruptedReply(t *testing.T) {
	t.Parallel()

	device, sim := newSimDevice(t, nil)
	sim.CorruptNextChecksum()

	var status DeviceStatus
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		attempts++
		var err error
		status, _, err = device.GetStatus(context.Background())
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.False(t, status.StackerEmpty())
}
