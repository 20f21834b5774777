package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:client:"

// Result describes one Allow decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is a fixed-window request counter per client, stored in Redis so
// every server instance shares the same budget.
type Limiter struct {
	rdb    *redis.Client
	window time.Duration
	now    func() time.Time
}

// New creates a limiter with the given window length.
func New(rdb *redis.Client, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{rdb: rdb, window: window, now: time.Now}
}

func (l *Limiter) key(clientID uint, windowStart time.Time) string {
	return fmt.Sprintf("%s%d:%d", keyPrefix, clientID, windowStart.Unix())
}

// Allow counts one request for clientID against limit. A non-positive limit never blocks.
func (l *Limiter) Allow(ctx context.Context, clientID uint, limit int) (Result, error) {
	now := l.now()
	start := now.Truncate(l.window)
	res := Result{Allowed: true, Limit: limit, ResetAt: start.Add(l.window)}
	if limit <= 0 {
		return res, nil
	}

	key := l.key(clientID, start)
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return res, err
	}

	count := int(incr.Val())
	res.Allowed = count <= limit
	if remaining := limit - count; remaining > 0 {
		res.Remaining = remaining
	}
	return res, nil
}
