package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
	SetServiceKeyHash(ctx context.Context, version int64, keyHash string, ttl time.Duration) (bool, error)
	GetServiceKeyHash(ctx context.Context) (version int64, keyHash string, found bool, err error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// setServiceKeyHash stores "version:hash" unless the key already holds a
// higher version.
var setServiceKeyHash = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur then
	local v = tonumber(string.match(cur, "^(%d+):"))
	if v and v > tonumber(ARGV[1]) then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[1] .. ":" .. ARGV[2], "PX", ARGV[3])
return 1
`)

// SetServiceKeyHash caches the hash of a service credential version. It
// reports false when a newer version is already cached, so a slow reader
// can never put back a hash that a rotation has replaced.
func (c *RedisCache) SetServiceKeyHash(ctx context.Context, version int64, keyHash string, ttl time.Duration) (bool, error) {
	n, err := setServiceKeyHash.Run(ctx, c.client, []string{ServiceKeyHashKey()},
		version, keyHash, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *RedisCache) GetServiceKeyHash(ctx context.Context) (int64, string, bool, error) {
	val, err := c.client.Get(ctx, ServiceKeyHashKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, err
	}

	v, hash, ok := strings.Cut(val, ":")
	version, perr := strconv.ParseInt(v, 10, 64)
	if !ok || perr != nil {
		return 0, "", false, nil
	}
	return version, hash, true, nil
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
