package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exampool/internal/config"
	"github.com/stemsi/exampool/internal/model"
)

// PoolCache stores the selection projection of an exam's pool.
type PoolCache interface {
	Get(ctx context.Context, examID uuid.UUID) ([]model.PoolQuestion, bool, error)
	Set(ctx context.Context, examID uuid.UUID, pool []model.PoolQuestion) error
	Delete(ctx context.Context, examID uuid.UUID) error
}

// RedisPoolCache keeps pools as JSON strings with a TTL.
type RedisPoolCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisPoolCache creates a RedisPoolCache.
func NewRedisPoolCache(rdb *redis.Client, ttl time.Duration) *RedisPoolCache {
	return &RedisPoolCache{rdb: rdb, ttl: ttl}
}

func (c *RedisPoolCache) Get(ctx context.Context, examID uuid.UUID) ([]model.PoolQuestion, bool, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.ExamPoolKey(examID.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get pool: %w", err)
	}

	var pool []model.PoolQuestion
	if err := json.Unmarshal(raw, &pool); err != nil {
		return nil, false, fmt.Errorf("decode pool: %w", err)
	}
	return pool, true, nil
}

func (c *RedisPoolCache) Set(ctx context.Context, examID uuid.UUID, pool []model.PoolQuestion) error {
	raw, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("encode pool: %w", err)
	}
	return c.rdb.Set(ctx, config.CacheKey.ExamPoolKey(examID.String()), raw, c.ttl).Err()
}

func (c *RedisPoolCache) Delete(ctx context.Context, examID uuid.UUID) error {
	return c.rdb.Del(ctx, config.CacheKey.ExamPoolKey(examID.String())).Err()
}
