package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/example/grocery-ordering/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 15 * time.Minute
	maxJitter  = 60 * time.Second
)

// setIfCurrent stores the cart unless the version floor is newer.
// KEYS: cart key, floor key. ARGV: payload, version, ttl ms.
var setIfCurrent = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '-1')
if floor > tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// invalidate raises the version floor and drops the cart.
// KEYS: cart key, floor key. ARGV: version, floor ttl ms.
var invalidate = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '-1')
if tonumber(ARGV[1]) > floor then
	redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisCartCache is a read-through cache for carts keyed by user id. Each
// user also has a version floor key, written on invalidation, that rejects
// fills carrying an older cart.
type RedisCartCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCartCache(client *redis.Client, ttl time.Duration) *RedisCartCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCartCache{client: client, baseTTL: ttl}
}

func (r *RedisCartCache) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &c, nil
}

func (r *RedisCartCache) Set(ctx context.Context, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// jitter spreads expiry of carts cached at the same moment
	ttl := r.baseTTL + time.Duration(rand.Int63n(int64(maxJitter)))
	keys := []string{cacheKey(c.UserID), versionKey(c.UserID)}
	if err := setIfCurrent.Run(ctx, r.client, keys, data, c.Version, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCartCache) Invalidate(ctx context.Context, userID string, version int) error {
	// the floor outlives any entry a racing reader could still write
	floorTTL := r.baseTTL + maxJitter
	keys := []string{cacheKey(userID), versionKey(userID)}
	if err := invalidate.Run(ctx, r.client, keys, version, floorTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

// Both keys share a hash tag so the scripts stay on one cluster slot.
func cacheKey(userID string) string {
	return fmt.Sprintf("cart:{%s}", userID)
}

func versionKey(userID string) string {
	return fmt.Sprintf("cart:{%s}:version", userID)
}
