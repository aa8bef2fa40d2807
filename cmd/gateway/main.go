package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/reelworks/reelworks/internal/api"
	"github.com/reelworks/reelworks/internal/catalog"
	"github.com/reelworks/reelworks/internal/config"
	"github.com/reelworks/reelworks/internal/health"
	"github.com/reelworks/reelworks/internal/logger"
	"github.com/reelworks/reelworks/internal/metrics"
	"github.com/reelworks/reelworks/internal/storage"
	"github.com/reelworks/reelworks/internal/tracing"
	"github.com/reelworks/reelworks/internal/worker"
)

type brokerAdapter struct {
	broker *broker.RedisStreamsBroker
}

func (a *brokerAdapter) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	j, err := job.New(jobType, payload)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	if err := a.broker.Enqueue(ctx, j); err != nil {
		return "", err
	}
	return j.ID, nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()

	log.Info("configuration loaded")

	ctx := context.Background()

	if cfg.TracingEnabled {
		shutdownTracing, err := tracing.Init(ctx, &tracing.Config{
			ServiceName:    "gateway",
			ServiceVersion: "1.0.0",
			Environment:    cfg.Environment,
			OTLPEndpoint:   cfg.TracingEndpoint,
			Enabled:        true,
			SampleRate:     cfg.TracingSampleRate,
		})
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() { _ = shutdownTracing(ctx) }()
		log.Info("tracing enabled", "endpoint", cfg.TracingEndpoint, "sample_rate", cfg.TracingSampleRate)
	}

	log.Info("connecting to database")
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("database connected")

	cat := catalog.NewPostgresCatalog(pool)
	if err := cat.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("connecting to object storage")
	store, err := storage.NewMinIOStorage(&storage.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
		Region:    cfg.S3Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure bucket: %w", err)
	}
	log.Info("object storage connected")

	log.Info("connecting to redis")
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	b := broker.NewRedisStreamsBroker(redisClient)
	log.Info("broker initialized")

	metrics.SetAppInfo("1.0.0", cfg.Environment, "gateway")

	instrumentedStore := metrics.NewInstrumentedStorage(store)

	enqueuer := worker.NewEnqueuer(&brokerAdapter{broker: b}, cat)
	checker := health.NewChecker(pool, redisClient).WithStorage(instrumentedStore)

	router := api.NewRouter(&api.Config{
		Jobs: &api.JobConfig{
			Catalog:  cat,
			Enqueuer: enqueuer,
			Storage:  instrumentedStore,
		},
		Checker:     checker,
		ServiceName: "gateway",
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "url", cfg.BaseURL)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("forced shutdown: %w", err)
		}
	}

	log.Info("server stopped gracefully")
	return nil
}
