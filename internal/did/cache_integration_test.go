//go:build integration

package did_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vcanchor/internal/did"
	"vcanchor/internal/did/mocks"
	"vcanchor/pkg/platform/sentinel"
	"vcanchor/pkg/testutil/containers"
)

type CachedResolverSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestCachedResolverSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedResolverSuite))
}

func (s *CachedResolverSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *CachedResolverSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *CachedResolverSuite) TestResolveCachesSuccessfulLookups() {
	ctrl := gomock.NewController(s.T())
	next := mocks.NewMockResolver(ctrl)
	cached := did.NewCachedResolver(next, s.redis.Client, time.Minute)
	ctx := context.Background()

	want := &did.Key{DID: "did:example:alice", KeyID: "k1", PublicKey: []byte{1, 2, 3}, Status: did.StatusActive}
	next.EXPECT().Resolve(gomock.Any(), "did:example:alice").Return(want, nil).Times(1)

	for range 3 {
		got, err := cached.Resolve(ctx, "did:example:alice")
		s.Require().NoError(err)
		s.Equal(want, got)
	}
	keys, err := s.redis.KeysWithPrefix(ctx, "did:key:")
	s.Require().NoError(err)
	s.Equal([]string{"did:key:did:example:alice"}, keys)

	s.Require().NoError(cached.Invalidate(ctx, "did:example:alice"))
	keys, err = s.redis.KeysWithPrefix(ctx, "did:key:")
	s.Require().NoError(err)
	s.Empty(keys)

	next.EXPECT().Resolve(gomock.Any(), "did:example:alice").Return(want, nil).Times(1)
	_, err = cached.Resolve(ctx, "did:example:alice")
	s.Require().NoError(err)
}

func (s *CachedResolverSuite) TestResolveDoesNotCacheFailures() {
	ctrl := gomock.NewController(s.T())
	next := mocks.NewMockResolver(ctrl)
	cached := did.NewCachedResolver(next, s.redis.Client, time.Minute)

	next.EXPECT().Resolve(gomock.Any(), "did:example:nobody").Return(nil, sentinel.ErrNotFound).Times(2)
	for range 2 {
		_, err := cached.Resolve(context.Background(), "did:example:nobody")
		s.ErrorIs(err, sentinel.ErrNotFound)
	}
}
