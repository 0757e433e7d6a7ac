package domain

import (
	"context"
	"time"
)

// PriceCache stores historical prices keyed by pair and publish time. A
// price at a fixed publish time never changes, so cached entries have no
// staleness concerns beyond their TTL.
type PriceCache interface {
	Set(ctx context.Context, pair string, publishTime uint64, price uint64, expo int32) error
	// Get returns ErrNotFound on a cache miss.
	Get(ctx context.Context, pair string, publishTime uint64) (price uint64, expo int32, err error)
}

// EventBus provides pub/sub delivery for bet lifecycle events.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a read-only channel of raw payloads. The subscription
	// is closed when the context is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	// Allow reports whether a request for the given key is permitted under
	// the limit for the window; permitted requests are counted.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
