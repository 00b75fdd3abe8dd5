package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis

	redisBackoff    = 3 * time.Second
	requeueBackoff  = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// batcher drains one Redis list into batches of T and hands every batch to
// flush. Malformed payloads are logged and dropped.
type batcher[T any] struct {
	rdb   redis.Cmdable
	queue string
	log   zerolog.Logger
	flush func(ctx context.Context, batch []T)
}

func (b *batcher[T]) run(ctx context.Context) {
	buffer := make([]T, 0, BatchSize)
	lastFlush := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			b.flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		// 2. Graceful shutdown
		select {
		case <-ctx.Done():
			b.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch. BLPop returns immediately when data exists.
		result, err := b.rdb.BLPop(ctx, PollTimeout, b.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			b.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleepCtx(ctx, redisBackoff)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var item T
		if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
			b.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, item)
	}
}

func (b *batcher[T]) shutdown(buffer []T) {
	if len(buffer) == 0 {
		return
	}
	b.log.Info().Int("count", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	b.flush(ctx, buffer)
}

// requeue pushes items back to the tail of the queue in one pipeline.
func (b *batcher[T]) requeue(ctx context.Context, items []T) {
	if len(items) == 0 {
		return
	}
	pipe := b.rdb.Pipeline()
	for _, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			b.log.Error().Err(err).Msg("Dropping unencodable item")
			continue
		}
		pipe.RPush(ctx, b.queue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		b.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	b.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	sleepCtx(ctx, requeueBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
