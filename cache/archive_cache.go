package cache

import (
	"context"
	"errors"
	"time"

	"hlsbox/logger"

	"github.com/go-redis/redis/v8"
)

const opTimeout = 5 * time.Second

// ArchiveCache keeps finished zip archives in Redis keyed by input hash.
type ArchiveCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewArchiveCache creates a cache on client whose entries expire after ttl.
func NewArchiveCache(client *redis.Client, ttl time.Duration) *ArchiveCache {
	return &ArchiveCache{client: client, ttl: ttl}
}

// Get returns the cached archive, or nil, nil on a miss. It makes exactly one attempt; callers
// treat an error as a miss.
func (c *ArchiveCache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("归档缓存命中", logger.String("key", key), logger.Int("dataSize", len(data)))
	return data, nil
}

// Set stores data under key with the cache TTL.
func (c *ArchiveCache) Set(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return err
	}
	logger.Debug("归档缓存设置成功",
		logger.String("key", key),
		logger.Int("dataSize", len(data)),
		logger.Duration("expiration", c.ttl))
	return nil
}

// Delete drops a cached archive.
func (c *ArchiveCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
