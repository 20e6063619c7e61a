package did

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vcanchor_did_cache_lookups_total",
	Help: "DID cache lookups by result",
}, []string{"result"})

const cacheKeyPrefix = "did:key:"

var _ Invalidator = (*CachedResolver)(nil)

// CachedResolver fronts a Resolver with Redis. Only successful resolutions are
// cached; Redis failures fall through to the wrapped resolver.
type CachedResolver struct {
	next   Resolver
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type CacheOption func(*CachedResolver)

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachedResolver) {
		c.logger = logger
	}
}

func NewCachedResolver(next Resolver, client *redis.Client, ttl time.Duration, opts ...CacheOption) *CachedResolver {
	c := &CachedResolver{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedResolver) Resolve(ctx context.Context, did string) (*Key, error) {
	cacheKey := cacheKeyPrefix + did
	data, err := c.client.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		var key Key
		if jsonErr := json.Unmarshal(data, &key); jsonErr == nil {
			cacheLookups.WithLabelValues("hit").Inc()
			return &key, nil
		}
		cacheLookups.WithLabelValues("corrupt").Inc()
	case errors.Is(err, redis.Nil):
		cacheLookups.WithLabelValues("miss").Inc()
	default:
		cacheLookups.WithLabelValues("error").Inc()
		c.logger.WarnContext(ctx, "did cache read failed", "did", did, "error", err)
	}

	key, err := c.next.Resolve(ctx, did)
	if err != nil {
		return nil, err
	}
	if encoded, jsonErr := json.Marshal(key); jsonErr == nil {
		if setErr := c.client.Set(ctx, cacheKey, encoded, c.ttl).Err(); setErr != nil {
			c.logger.WarnContext(ctx, "did cache write failed", "did", did, "error", setErr)
		}
	}
	return key, nil
}

// Invalidate drops the cached key for did, e.g. after a key rotation.
func (c *CachedResolver) Invalidate(ctx context.Context, did string) error {
	return c.client.Del(ctx, cacheKeyPrefix+did).Err()
}
