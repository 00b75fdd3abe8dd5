package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampool/internal/config"
)

// Workers block on BLPOP with a 1s timeout, so reads must outlast it.
const redisReadTimeout = 3 * time.Second

// NewRedisClient creates and validates a Redis client connection used for
// the pool cache and the background persistence queues.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if opt.ReadTimeout < redisReadTimeout {
		opt.ReadTimeout = redisReadTimeout
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Dur("read_timeout", opt.ReadTimeout).
		Msg("Redis connected")

	return rdb, nil
}

// PingRedis adapts a client to a health check.
func PingRedis(rdb redis.Cmdable) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
