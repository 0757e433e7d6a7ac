package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/0xfraan/leverbet/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each resolved
// price is stored at key "px:{pair}:{publish_time}" with fields "price" and
// "expo". Entries are immutable, so the TTL only bounds memory.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. A zero ttl
// keeps entries until Redis evicts them.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(pair string, publishTime uint64) string {
	return "px:" + pair + ":" + strconv.FormatUint(publishTime, 10)
}

// Set stores a resolved historical price.
func (pc *PriceCache) Set(ctx context.Context, pair string, publishTime uint64, price uint64, expo int32) error {
	key := priceKey(pair, publishTime)
	fields := map[string]interface{}{
		"price": strconv.FormatUint(price, 10),
		"expo":  strconv.FormatInt(int64(expo), 10),
	}
	if err := pc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", key, err)
	}
	if pc.ttl > 0 {
		if err := pc.rdb.Expire(ctx, key, pc.ttl).Err(); err != nil {
			return fmt.Errorf("redis: expire price %s: %w", key, err)
		}
	}
	return nil
}

// Get retrieves a cached price. It returns domain.ErrNotFound on a miss.
func (pc *PriceCache) Get(ctx context.Context, pair string, publishTime uint64) (uint64, int32, error) {
	key := priceKey(pair, publishTime)
	vals, err := pc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: get price %s: %w", key, err)
	}
	if len(vals) == 0 {
		return 0, 0, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, 0, domain.ErrNotFound
	}
	price, err := strconv.ParseUint(priceStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("redis: parse price %s: %w", key, err)
	}

	expoStr, ok := vals["expo"]
	if !ok {
		return 0, 0, domain.ErrNotFound
	}
	expo, err := strconv.ParseInt(expoStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("redis: parse expo %s: %w", key, err)
	}

	return price, int32(expo), nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
