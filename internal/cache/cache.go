// Package cache holds the response cache, the rate-limit counters and the
// short-lived markers used for view deduplication. All three share one
// backing store: Redis when configured, an in-process map otherwise.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix evicts every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Counter is a fixed-window counter. Incr returns the count after the
// increment and the time left before the window resets. The first increment
// of a window starts it.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Marker sets a key only if it is absent. It reports whether this call created it.
type Marker interface {
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// Store is what both backends implement.
type Store interface {
	Cache
	Counter
	Marker
	Ping(ctx context.Context) error
}
