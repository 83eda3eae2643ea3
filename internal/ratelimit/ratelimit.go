// Package ratelimit implements a sliding-window rate limiter on Redis sorted
// sets. Callers decide what to do on infrastructure errors; the redirect path
// fails open.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

type Limiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
}

// Result reports the outcome of one check.
type Result struct {
	Exceeded  bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func NewLimiter(client *redis.Client, requests int, window time.Duration) *Limiter {
	return &Limiter{client: client, requests: requests, window: window}
}

func (l *Limiter) Window() time.Duration { return l.window }

// CheckAndIncrement counts the caller's requests in the rolling window and,
// if the quota is not exceeded, records this one. Any returned error means
// the limiter could not decide; the caller chooses fail-open or fail-closed.
func (l *Limiter) CheckAndIncrement(ctx context.Context, key string) (Result, error) {
	redisKey := keyPrefix + key
	now := time.Now().UnixNano()
	windowStart := now - l.window.Nanoseconds()

	result := Result{
		Limit:   l.requests,
		ResetAt: time.Now().Add(l.window),
	}

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return result, err
	}

	count := countCmd.Val()
	if count >= int64(l.requests) {
		result.Exceeded = true
		return result, nil
	}

	pipe = l.client.Pipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return result, err
	}

	remaining := l.requests - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}
	result.Remaining = remaining

	return result, nil
}
