// Package ratelimit enforces per-action fixed-window quotas keyed by requester.
package ratelimit

import (
	"context"
	"time"

	"cms-backend/internal/cache"
	"cms-backend/internal/config"
	"cms-backend/internal/metrics"
)

type Action string

const (
	ActionContact        Action = "contact"
	ActionFaqVote        Action = "faq-vote"
	ActionFaqRead        Action = "faq-read"
	ActionResourceRead   Action = "resource-read"
	ActionResourceSearch Action = "resource-search"
	ActionShare          Action = "share"
)

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	counter cache.Counter
	window  time.Duration
	quotas  map[Action]int
}

func New(counter cache.Counter, window time.Duration, quotas map[Action]int) *Limiter {
	q := make(map[Action]int, len(quotas))
	for action, limit := range quotas {
		q[action] = limit
	}
	return &Limiter{counter: counter, window: window, quotas: q}
}

// QuotasFromConfig returns the per-action limits configured for one window.
func QuotasFromConfig(cfg *config.Config) map[Action]int {
	return map[Action]int{
		ActionContact:        cfg.RateLimitContact,
		ActionFaqVote:        cfg.RateLimitFaqVote,
		ActionFaqRead:        cfg.RateLimitFaqRead,
		ActionResourceRead:   cfg.RateLimitResourceRead,
		ActionResourceSearch: cfg.RateLimitResourceSearch,
		ActionShare:          cfg.RateLimitShare,
	}
}

// Allow counts one hit for (action, requester). Actions without a positive quota are never limited.
func (l *Limiter) Allow(ctx context.Context, action Action, requester string) (Decision, error) {
	limit := l.quotas[action]
	if limit <= 0 {
		return Decision{Allowed: true}, nil
	}

	count, ttl, err := l.counter.Incr(ctx, cache.RateKey(string(action), requester), l.window)
	if err != nil {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, err
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
	}
	if !d.Allowed {
		if ttl <= 0 {
			ttl = l.window
		}
		d.RetryAfter = ttl
		metrics.RecordRateLimited(string(action))
	}
	return d, nil
}
