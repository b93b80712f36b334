package cache

import (
	"context"
	"encoding/json"
	"time"

	"cms-backend/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// ReadThrough serves encoded JSON from the cache and fills misses through a
// loader. Concurrent misses on one key share a single load.
type ReadThrough struct {
	cache Cache
	ttl   time.Duration
	group singleflight.Group
}

func NewReadThrough(c Cache, ttl time.Duration) *ReadThrough {
	return &ReadThrough{cache: c, ttl: ttl}
}

// Fetch returns the payload for key and whether it came from the cache.
// Cache failures degrade to a direct load; they never fail the request.
func (rt *ReadThrough) Fetch(ctx context.Context, key string, load func(ctx context.Context) (interface{}, error)) ([]byte, bool, error) {
	if rt.cache != nil {
		cached, ok, err := rt.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.RecordCacheLookup("error")
		case ok:
			metrics.RecordCacheLookup("hit")
			return cached, true, nil
		default:
			metrics.RecordCacheLookup("miss")
		}
	}

	v, err, _ := rt.group.Do(key, func() (interface{}, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if rt.cache != nil {
			_ = rt.cache.Set(ctx, key, payload, rt.ttl)
		}
		return payload, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}
