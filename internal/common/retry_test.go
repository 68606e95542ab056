package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	fast := RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	tests := []struct {
		name      string
		failures  int
		permanent bool
		wantCalls int
		wantErr   error
	}{
		{name: "succeeds first time", failures: 0, wantCalls: 1},
		{name: "succeeds after transient failures", failures: 2, wantCalls: 3},
		{name: "gives up after max attempts", failures: 5, wantCalls: 3, wantErr: ErrMaxRetries},
		{name: "stops on permanent error", failures: 5, permanent: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				if calls <= tt.failures {
					return &RetryableError{Err: errors.New("boom"), Retryable: !tt.permanent}
				}
				return nil
			}, fast)

			assert.Equal(t, tt.wantCalls, calls)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.permanent:
				require.Error(t, err)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error {
		return errors.New("transient")
	}, RetryOptions{MaxAttempts: 3, InitialDelay: time.Second})

	require.ErrorIs(t, err, context.Canceled)
}

func TestRowError(t *testing.T) {
	err := NewRowError(KindInvalidQuantity, "pieces_moved must be positive", ErrInvalidQuantity)

	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, KindInvalidQuantity, KindOf(err))
	assert.Equal(t, KindStore, KindOf(errors.New("disk full")))
	assert.Contains(t, err.Error(), "invalid_quantity")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", level.String())

	_, err = ParseLevel("verbose")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestUserError(t *testing.T) {
	err := NewUserError("Drug ID 3 not found", ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Drug ID 3 not found: not found", err.Error())

	bare := NewUserError("Nothing to correct", nil)
	assert.Equal(t, "Nothing to correct", bare.Error())
}

func TestWithRetry_PermanentError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return Permanent(errors.New("unreadable audio"))
	}, RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond})

	assert.Equal(t, 1, calls)
	require.EqualError(t, err, "unreadable audio")
	assert.NotErrorIs(t, err, ErrMaxRetries)
}

func TestWithRetry_StopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		cancel()
		return fmt.Errorf("request: %w", context.Canceled)
	}, RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond})

	assert.Equal(t, 1, calls)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithRetry_RetriesRequestTimeout(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls == 1 {
			return fmt.Errorf("request: %w", context.DeadlineExceeded)
		}
		return nil
	}, RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetry_RateLimitWaitsMaxDelay(t *testing.T) {
	calls := 0
	start := time.Now()
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls == 1 {
			return fmt.Errorf("429: %w", ErrRateLimit)
		}
		return nil
	}, RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 50 * time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
