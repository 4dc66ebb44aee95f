package dedup

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// HashCache is a fast first opinion on whether a content hash belongs to an
// already stored article. Callers must Record a hash only after the article
// carrying it has been durably written, so a hit can be trusted without a
// store round trip; a miss or a cache error still sends the caller to the
// document store, since entries expire.
type HashCache interface {
	// Seen reports whether the hash has been recorded.
	Seen(ctx context.Context, hash string) (bool, error)
	// Record remembers the hash.
	Record(ctx context.Context, hash string) error
}

const hashKeyPrefix = "dedup:hash:"

// RedisHashCache backs HashCache with Redis keys under a TTL, so the cache
// stays bounded without explicit eviction.
type RedisHashCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisHashCache(client *redis.Client, ttl time.Duration) *RedisHashCache {
	return &RedisHashCache{client: client, ttl: ttl}
}

func (c *RedisHashCache) Seen(ctx context.Context, hash string) (bool, error) {
	n, err := c.client.Exists(ctx, hashKeyPrefix+hash).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisHashCache) Record(ctx context.Context, hash string) error {
	return c.client.Set(ctx, hashKeyPrefix+hash, 1, c.ttl).Err()
}

// MemoryHashCache is an in-process HashCache for tests and for running
// without a Redis deployment.
type MemoryHashCache struct {
	seen map[string]bool
}

func NewMemoryHashCache() *MemoryHashCache {
	return &MemoryHashCache{seen: make(map[string]bool)}
}

func (c *MemoryHashCache) Seen(_ context.Context, hash string) (bool, error) {
	return c.seen[hash], nil
}

func (c *MemoryHashCache) Record(_ context.Context, hash string) error {
	c.seen[hash] = true
	return nil
}
