package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcanchor/internal/ratelimit/models"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestInMemoryStoreSlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_800_000_000, 0)}
	s := NewInMemoryStore(WithClock(clock.Now))
	ctx := context.Background()
	limit := models.Limit{Requests: 3, Window: time.Minute}

	for i := range 3 {
		res, err := s.Allow(ctx, "k", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		clock.Advance(10 * time.Second)
	}

	res, err := s.Allow(ctx, "k", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 30, res.RetryAfter, "first request leaves the window 60s after it was made")

	clock.Advance(31 * time.Second)
	res, err = s.Allow(ctx, "k", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestInMemoryStoreKeysAreIndependent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	limit := models.Limit{Requests: 1, Window: time.Minute}

	res, err := s.Allow(ctx, "a", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = s.Allow(ctx, "b", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = s.Allow(ctx, "a", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	require.NoError(t, s.Reset(ctx, "a"))
	res, err = s.Allow(ctx, "a", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
