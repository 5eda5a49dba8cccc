package reservation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// emptyMarker keeps an empty reservation set storable; Redis drops empty sets.
const emptyMarker = ""

// CachedLookup queries the inner lookup on every call and mirrors each
// successful read into a Redis set. The mirror is only served when the inner
// lookup fails, and only until its TTL expires.
type CachedLookup struct {
	inner  Lookup
	client redis.Cmdable
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedLookup wraps inner with a Redis fallback. A ttl of zero disables
// the fallback.
func NewCachedLookup(inner Lookup, client redis.Cmdable, key string, ttl time.Duration, logger *zap.Logger) *CachedLookup {
	return &CachedLookup{inner: inner, client: client, key: key, ttl: ttl, logger: logger}
}

func (c *CachedLookup) PendingIdentifiers(ctx context.Context) (map[string]struct{}, error) {
	set, err := c.inner.PendingIdentifiers(ctx)
	if err == nil {
		c.store(ctx, set)
		return set, nil
	}

	cached, ok := c.snapshot(ctx)
	if !ok {
		return nil, err
	}
	c.logger.Warn("reservation lookup failed; serving mirrored set",
		zap.String("key", c.key), zap.Int("size", len(cached)), zap.Error(err))
	return cached, nil
}

func (c *CachedLookup) snapshot(ctx context.Context) (map[string]struct{}, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	members, err := c.client.SMembers(ctx, c.key).Result()
	if err != nil {
		c.logger.Warn("reservation mirror read failed", zap.String("key", c.key), zap.Error(err))
		return nil, false
	}
	if len(members) == 0 {
		return nil, false
	}
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		if m != emptyMarker {
			set[m] = struct{}{}
		}
	}
	return set, true
}

func (c *CachedLookup) store(ctx context.Context, set map[string]struct{}) {
	if c.ttl <= 0 {
		return
	}
	members := make([]interface{}, 0, len(set)+1)
	members = append(members, emptyMarker)
	for id := range set {
		members = append(members, id)
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.key)
		pipe.SAdd(ctx, c.key, members...)
		pipe.Expire(ctx, c.key, c.ttl)
		return nil
	})
	if err != nil {
		c.logger.Warn("reservation mirror write failed", zap.String("key", c.key), zap.Error(err))
	}
}
