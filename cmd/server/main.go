package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampool/internal/config"
	"github.com/stemsi/exampool/internal/database"
	"github.com/stemsi/exampool/internal/handler"
	"github.com/stemsi/exampool/internal/logger"
	"github.com/stemsi/exampool/internal/repository"
	"github.com/stemsi/exampool/internal/router"
	"github.com/stemsi/exampool/internal/service"
	"github.com/stemsi/exampool/internal/validator"
	"github.com/stemsi/exampool/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExamPool")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Storage Backends ──────────────────────────────────────────────
	var (
		store     repository.Store
		cache     service.PoolCache
		publisher service.EventPublisher = service.NopPublisher{}
		rdb       *redis.Client
		checks    = map[string]handler.Check{}
		workers   sync.WaitGroup
	)

	// Workers outlive the signal context so they can drain after the
	// HTTP server stops.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		rdb, err = database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		store = repository.NewPostgresStore(pool)
		cache = service.NewRedisPoolCache(rdb, cfg.PoolCacheTTL)
		publisher = worker.NewQueuePublisher(rdb)
		checks["postgres"] = database.PingPostgres(pool)
		checks["redis"] = database.PingRedis(rdb)

		// ─── Start Background Workers ─────────────────────────────────
		auditWorker := worker.NewAuditWorker(pool, rdb, log)
		statsWorker := worker.NewQuestionStatsWorker(pool, rdb, log)
		workers.Add(2)
		go func() { defer workers.Done(); auditWorker.Start(workerCtx) }()
		go func() { defer workers.Done(); statsWorker.Start(workerCtx) }()

	case config.StoreDriverMemory:
		store = repository.NewMemoryStore()
		log.Warn().Msg("Using in-memory store; data is lost on exit and events are discarded")

	default:
		log.Fatal().Str("store", cfg.StoreDriver).Msg("Unknown STORE_DRIVER")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	poolService := service.NewPoolService(store, cache, log)
	examService := service.NewExamService(store, poolService, log)
	attemptService := service.NewAttemptService(store, poolService, publisher, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt: handler.NewAttemptHandler(attemptService, log),
		Exam:    handler.NewExamHandler(examService, log),
		WS:      handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		Health:  handler.NewHealthHandler(checks, healthQueues(rdb)),
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published exam pools BEFORE accepting traffic so the first
	// wave of StartAttempt calls does not stampede the database.
	if err := poolService.PrewarmAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for their final flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// healthQueues avoids handing a typed nil client to the health handler.
func healthQueues(rdb *redis.Client) redis.Cmdable {
	if rdb == nil {
		return nil
	}
	return rdb
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
