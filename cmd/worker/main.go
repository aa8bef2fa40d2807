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
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	"github.com/abdul-hamid-achik/job-queue/pkg/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/reelworks/reelworks/internal/analysis"
	"github.com/reelworks/reelworks/internal/catalog"
	"github.com/reelworks/reelworks/internal/config"
	"github.com/reelworks/reelworks/internal/logger"
	"github.com/reelworks/reelworks/internal/media"
	"github.com/reelworks/reelworks/internal/metrics"
	"github.com/reelworks/reelworks/internal/storage"
	"github.com/reelworks/reelworks/internal/tracing"
	rwworker "github.com/reelworks/reelworks/internal/worker"
)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zerologger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if cfg.TracingEnabled {
		shutdownTracing, err := tracing.Init(ctx, &tracing.Config{
			ServiceName:    "worker",
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

	b := broker.NewRedisStreamsBroker(redisClient,
		broker.WithWorkerID(fmt.Sprintf("worker-%d", os.Getpid())),
	)
	log.Info("broker initialized")

	metrics.SetAppInfo("1.0.0", cfg.Environment, "worker")
	metrics.SetWorkerPoolSize(cfg.WorkerConcurrency)

	instrumentedStore := metrics.NewInstrumentedStorage(store)

	processor, err := media.NewFFmpegProcessor(&media.Config{
		FFmpegPath:        cfg.FFmpegPath,
		FFprobePath:       cfg.FFprobePath,
		Preset:            cfg.TranscodePreset,
		AudioBitrate:      cfg.AudioBitrate,
		ThumbnailInterval: cfg.ThumbnailInterval,
		ThumbnailQuality:  cfg.ThumbnailQuality,
	})
	if err != nil {
		return fmt.Errorf("failed to create media processor: %w", err)
	}
	log.Info("media processor ready", "ffmpeg", cfg.FFmpegPath)

	var analyzer analysis.Analyzer
	if cfg.GeminiAPIKey != "" {
		analyzer = analysis.NewGeminiAnalyzer(cfg.GeminiAPIKey, cfg.GeminiModel)
		log.Info("gemini analyzer configured", "model", cfg.GeminiModel)
	} else {
		analyzer = analysis.NewStubAnalyzer()
		log.Info("no GEMINI_API_KEY set, analysis results will be pending")
	}

	deps := &rwworker.Dependencies{
		Storage:   instrumentedStore,
		Processor: processor,
		Analyzer:  analyzer,
		Catalog:   cat,
		Options: rwworker.Options{
			TempDir:           cfg.TempDir,
			PublicBaseURL:     cfg.PublicBaseURL,
			StorageRetries:    cfg.MaxRetries,
			UploadConcurrency: cfg.UploadConcurrency,
		},
	}

	log.Info("registering job handlers")
	registry := worker.NewRegistry()
	_ = registry.Register(rwworker.JobTypeProcess, rwworker.ProcessHandler(deps))
	_ = registry.Register(rwworker.JobTypeTranscode, rwworker.TranscodeHandler(deps))
	_ = registry.Register(rwworker.JobTypeThumbnails, rwworker.ThumbnailsHandler(deps))
	_ = registry.Register(rwworker.JobTypeProbe, rwworker.ProbeHandler(deps))
	log.Info("handlers registered", "count", len(registry.Types()))

	// Video jobs get the longer of the two timeout budgets.
	jobTimeout := cfg.JobTimeout
	if cfg.VideoJobTimeout > jobTimeout {
		jobTimeout = cfg.VideoJobTimeout
	}

	registry.Use(
		middleware.RecoveryMiddleware(zerologger),
		middleware.LoggingMiddleware(zerologger),
		middleware.TimeoutMiddleware(jobTimeout),
		middleware.MetricsMiddleware(metrics.NewPrometheusCollector()),
	)

	log.Info("creating worker pool", "concurrency", cfg.WorkerConcurrency)

	workerPool := worker.NewPool(b, registry,
		worker.WithConcurrency(cfg.WorkerConcurrency),
		worker.WithPoolQueues([]string{"default"}),
		worker.WithPoolPollInterval(time.Second),
		worker.WithShutdownTimeout(30*time.Second),
		worker.WithPoolLogger(zerologger),
	)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	go func() {
		log.Info("metrics server starting", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	poolErr := make(chan error, 1)
	go func() {
		log.Info("starting worker pool")
		poolErr <- workerPool.Start(ctx)
	}()

	select {
	case err := <-poolErr:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("worker pool error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := workerPool.Stop(shutdownCtx); err != nil {
			log.Error("error stopping pool", "error", err)
		}

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("error stopping metrics server", "error", err)
		}

		cancel()
	}

	log.Info("worker pool stopped gracefully")
	return nil
}
