package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Nilscreate/websitecrawltool/logging"
)

// RedisStore shares windows between instances through Redis keys that
// expire with their window.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logging.Log.Info("Connected to Redis successfully", zap.String("addr", addr), zap.Int("db", db))
	return &RedisStore{client: rdb}, nil
}

func (r *RedisStore) Increment(ctx context.Context, key string, length time.Duration) (int64, time.Time, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, key, length).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to set expiry on %s: %w", key, err)
		}
	}

	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to read expiry of %s: %w", key, err)
	}
	if ttl < 0 {
		// key lost its expiry; restart the window
		if err := r.client.PExpire(ctx, key, length).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to set expiry on %s: %w", key, err)
		}
		ttl = length
	}
	return count, time.Now().Add(ttl), nil
}

// Close releases the Redis connection pool
func (r *RedisStore) Close() error {
	return r.client.Close()
}
