package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jack/golang-shortlink-service/internal/config"
	"github.com/jack/golang-shortlink-service/internal/model"
)

const (
	linkCachePrefix  = "link:"
	clickCountPrefix = "clicks:"

	// tombstoneValue marks a code as confirmed absent, distinct from a plain
	// miss, so repeated lookups of nonexistent codes do not hammer Postgres.
	tombstoneValue = "__absent__"
)

type RedisRepository struct {
	client       *redis.Client
	cacheTTL     time.Duration
	tombstoneTTL time.Duration
}

func NewRedisRepository(cfg *config.RedisConfig, cache *config.CacheConfig) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisRepository{
		client:       client,
		cacheTTL:     cache.TTL,
		tombstoneTTL: cache.TombstoneTTL,
	}, nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) Client() *redis.Client {
	return r.client
}

// GetLink returns the cached link for code. A nil link with tombstone=true
// means the code is known absent; nil with tombstone=false is a plain miss.
func (r *RedisRepository) GetLink(ctx context.Context, code string) (*model.ShortLink, bool, error) {
	key := linkCachePrefix + code

	// GETEX refreshes the TTL on read (Redis 6.2+) so hot keys do not all
	// expire at once.
	data, err := r.client.GetEx(ctx, key, r.cacheTTL).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get link from cache: %w", err)
	}

	if string(data) == tombstoneValue {
		return nil, true, nil
	}

	var link model.ShortLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached link: %w", err)
	}

	return &link, false, nil
}

// SetLink caches a link under its short code, capping the TTL at the link's
// remaining lifetime so an expired link never outlives itself in cache.
func (r *RedisRepository) SetLink(ctx context.Context, link *model.ShortLink) error {
	key := linkCachePrefix + link.ShortCode

	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	ttl := r.cacheTTL
	if link.ExpiresAt != nil {
		remaining := time.Until(*link.ExpiresAt)
		if remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set link in cache: %w", err)
	}

	return nil
}

// SetTombstone marks a code as confirmed absent for a short window.
func (r *RedisRepository) SetTombstone(ctx context.Context, code string) error {
	key := linkCachePrefix + code

	if err := r.client.Set(ctx, key, tombstoneValue, r.tombstoneTTL).Err(); err != nil {
		return fmt.Errorf("failed to set tombstone: %w", err)
	}

	return nil
}

// InvalidateLink drops any cached entry for code. Called synchronously by
// every write path before the write is acknowledged.
func (r *RedisRepository) InvalidateLink(ctx context.Context, code string) error {
	key := linkCachePrefix + code

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate link: %w", err)
	}

	return nil
}

// IncrementPendingClicks accumulates one click for later batch flush to
// Postgres by the sync scheduler.
func (r *RedisRepository) IncrementPendingClicks(ctx context.Context, code string) error {
	key := clickCountPrefix + code

	if err := r.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to increment pending clicks: %w", err)
	}

	return nil
}

// RestorePendingClicks adds delta back after a failed flush.
func (r *RedisRepository) RestorePendingClicks(ctx context.Context, code string, delta int64) error {
	key := clickCountPrefix + code

	if err := r.client.IncrBy(ctx, key, delta).Err(); err != nil {
		return fmt.Errorf("failed to restore pending clicks: %w", err)
	}

	return nil
}

// GetPendingClicks returns the unflushed count without consuming it.
func (r *RedisRepository) GetPendingClicks(ctx context.Context, code string) (int64, error) {
	key := clickCountPrefix + code

	count, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get pending clicks: %w", err)
	}

	return count, nil
}

// DrainPendingClicks atomically reads and clears the counter (GETDEL,
// Redis 6.2+) so the flush neither loses nor double-counts clicks.
func (r *RedisRepository) DrainPendingClicks(ctx context.Context, code string) (int64, error) {
	key := clickCountPrefix + code

	count, err := r.client.GetDel(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to drain pending clicks: %w", err)
	}

	return count, nil
}

// PendingClickCodes lists every short code with an unflushed counter.
func (r *RedisRepository) PendingClickCodes(ctx context.Context) ([]string, error) {
	pattern := clickCountPrefix + "*"

	var codes []string
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		codes = append(codes, iter.Val()[len(clickCountPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan pending click keys: %w", err)
	}

	return codes, nil
}

func (r *RedisRepository) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
