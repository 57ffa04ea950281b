package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindow_AllowsUpToLimitThenBlocks(t *testing.T) {
	lim := NewSlidingWindow(3, time.Minute, 16)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := lim.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, ok, "call %d should be allowed", i)
	}

	ok, err := lim.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok, "4th call within the window should be blocked")
}

func TestSlidingWindow_BucketsAreIndependent(t *testing.T) {
	lim := NewSlidingWindow(1, time.Minute, 16)
	ctx := context.Background()

	ok1, err := lim.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := lim.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, ok2, "a different bucket must not be affected by user-1's count")

	ok1Again, err := lim.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok1Again)
}

func TestSlidingWindow_WindowResets(t *testing.T) {
	lim := NewSlidingWindow(1, 10*time.Millisecond, 16)
	ctx := context.Background()

	ok, err := lim.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lim.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(15 * time.Millisecond)

	ok, err = lim.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok, "a new window should reset the count")
}

func TestSlidingWindow_ZeroLimitAlwaysBlocks(t *testing.T) {
	lim := NewSlidingWindow(0, time.Minute, 16)
	ok, err := lim.Allow(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
