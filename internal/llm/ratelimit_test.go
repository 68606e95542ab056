package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Disabled(t *testing.T) {
	var rl *rateLimiter = newRateLimiter(0)
	assert.Nil(t, rl)
	assert.NoError(t, rl.wait(context.Background()))
}

func TestRateLimiter_Reserve(t *testing.T) {
	clock := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(60)
	rl.now = func() time.Time { return clock }
	rl.lastRefill = clock

	for i := 0; i < 60; i++ {
		require.Zero(t, rl.reserve(), "token %d", i)
	}

	delay := rl.reserve()
	assert.InDelta(t, float64(time.Second), float64(delay), float64(time.Millisecond))

	clock = clock.Add(2 * time.Second)
	assert.Zero(t, rl.reserve())
	assert.Zero(t, rl.reserve())
	assert.NotZero(t, rl.reserve())
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := newRateLimiter(1)
	require.NoError(t, rl.wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rl.wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
