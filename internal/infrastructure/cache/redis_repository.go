package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/repository"
)

// deleteBatchSize bounds how many keys one DEL carries during prefix
// invalidation.
const deleteBatchSize = 200

// RedisRepository implements the AggregateCache interface using Redis as
// the backend. Every operation degrades gracefully: if Redis is
// unreachable, reads become misses and writes become no-ops, because
// correctness never depends on the cache being available.
type RedisRepository struct {
	client   *redis.Client
	logger   *slog.Logger
	disabled atomic.Bool
}

func NewRedisRepository(addr, password string, db int, logger *slog.Logger) *RedisRepository {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	r := &RedisRepository{client: client, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, continuing with caching disabled", "addr", addr, "error", err)
		r.disabled.Store(true)
	}
	return r
}

// Ensure RedisRepository implements the AggregateCache interface
var _ repository.AggregateCache = (*RedisRepository)(nil)

// Enabled reports whether the cache backend was reachable at startup.
func (r *RedisRepository) Enabled() bool {
	return !r.disabled.Load()
}

// Get returns the cached value for key, or "" when absent or unavailable.
func (r *RedisRepository) Get(ctx context.Context, key string) string {
	if r.disabled.Load() {
		return ""
	}
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.Debug("cache get failed, treating as miss", "key", key, "error", err)
		}
		return ""
	}
	return val
}

// Set stores value under key with the given TTL, best effort.
func (r *RedisRepository) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if r.disabled.Load() {
		return
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Debug("cache set failed", "key", key, "error", err)
	}
}

// Delete removes a single key, best effort.
func (r *RedisRepository) Delete(ctx context.Context, key string) {
	if r.disabled.Load() {
		return
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Debug("cache delete failed", "key", key, "error", err)
	}
}

// DeleteByPrefix removes every key under prefix using SCAN, deleting in
// batches so one invalidation cannot block the server.
func (r *RedisRepository) DeleteByPrefix(ctx context.Context, prefix string) {
	if r.disabled.Load() {
		return
	}

	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	batch := make([]string, 0, deleteBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			r.logger.Debug("cache prefix delete failed", "prefix", prefix, "error", err)
		}
		batch = batch[:0]
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= deleteBatchSize {
			flush()
		}
	}
	flush()
	if err := iter.Err(); err != nil {
		r.logger.Debug("cache scan failed", "prefix", prefix, "error", err)
	}
}

// BuildKey composes a deterministic, order-sensitive key so identical
// logical queries always hash to the same entry.
func (r *RedisRepository) BuildKey(exchange, method string, params ...any) string {
	parts := make([]string, 0, len(params)+2)
	parts = append(parts, exchange, method)
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ":")
}
