//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vcanchor/internal/ratelimit/models"
	"vcanchor/internal/ratelimit/store"
	"vcanchor/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestLimitIsSharedAcrossCallers() {
	ctx := context.Background()
	limit := models.Limit{Requests: 5, Window: time.Minute}

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Allow(ctx, "rl:write:did:alice", limit)
			if s.NoError(err) && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(5), allowed.Load())

	res, err := s.store.Allow(ctx, "rl:write:did:alice", limit)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.GreaterOrEqual(res.RetryAfter, 1)
}

func (s *RedisStoreSuite) TestWindowExpires() {
	ctx := context.Background()
	limit := models.Limit{Requests: 1, Window: 200 * time.Millisecond}

	res, err := s.store.Allow(ctx, "k", limit)
	s.Require().NoError(err)
	s.True(res.Allowed)
	res, err = s.store.Allow(ctx, "k", limit)
	s.Require().NoError(err)
	s.False(res.Allowed)

	time.Sleep(300 * time.Millisecond)
	res, err = s.store.Allow(ctx, "k", limit)
	s.Require().NoError(err)
	s.True(res.Allowed)

	s.Require().NoError(s.store.Reset(ctx, "k"))
}
