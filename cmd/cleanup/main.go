package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"

	"github.com/reelworks/reelworks/internal/catalog"
	"github.com/reelworks/reelworks/internal/config"
	"github.com/reelworks/reelworks/internal/logger"
	"github.com/reelworks/reelworks/internal/storage"
	"github.com/reelworks/reelworks/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("cleanup failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()

	log.Info("starting cleanup job")
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

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

	cat := catalog.NewPostgresCatalog(pool)

	stats, err := worker.RunCleanup(logger.WithLogger(ctx, log), cat, store, cfg.StaleJobAge, cfg.ResultRetention)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	log.Info("cleanup completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"stale_reaped", stats.StaleReaped,
		"jobs_deleted", stats.JobsDeleted,
		"objects_removed", stats.ObjectsRemoved,
	)

	return nil
}
