package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        int
	MetricsPort int
	BaseURL     string

	Environment string
	LogLevel    string

	DatabaseURL string
	RedisURL    string

	// Object storage. Either S3Endpoint is set explicitly, or it is derived
	// from the Cloudflare account ID (R2's S3-compatible endpoint).
	S3Endpoint          string
	CloudflareAccountID string
	S3AccessKey         string
	S3SecretKey         string
	S3Bucket            string
	S3UseSSL            bool
	S3Region            string
	PublicBaseURL       string

	WorkerConcurrency int
	JobTimeout        time.Duration
	VideoJobTimeout   time.Duration
	MaxRetries        int

	TempDir           string
	FFmpegPath        string
	FFprobePath       string
	TranscodePreset   string
	AudioBitrate      string
	ThumbnailInterval time.Duration
	ThumbnailQuality  int
	UploadConcurrency int

	GeminiAPIKey string
	GeminiModel  string

	ResultRetention time.Duration
	StaleJobAge     time.Duration

	TracingEnabled    bool
	TracingEndpoint   string
	TracingSampleRate float64
}

func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Port = getEnvInt("PORT", 8080)
	cfg.MetricsPort = getEnvInt("METRICS_PORT", 9090)
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.S3AccessKey = os.Getenv("CLOUDFLARE_R2_ACCESS_KEY_ID")
	if cfg.S3AccessKey == "" {
		return nil, fmt.Errorf("CLOUDFLARE_R2_ACCESS_KEY_ID is required")
	}

	cfg.S3SecretKey = os.Getenv("CLOUDFLARE_R2_SECRET_ACCESS_KEY")
	if cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("CLOUDFLARE_R2_SECRET_ACCESS_KEY is required")
	}

	cfg.S3Bucket = os.Getenv("CLOUDFLARE_R2_BUCKET_NAME")
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("CLOUDFLARE_R2_BUCKET_NAME is required")
	}

	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.CloudflareAccountID = os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	if cfg.S3Endpoint == "" {
		if cfg.CloudflareAccountID == "" {
			return nil, fmt.Errorf("either S3_ENDPOINT or CLOUDFLARE_ACCOUNT_ID is required")
		}
		cfg.S3Endpoint = fmt.Sprintf("%s.r2.cloudflarestorage.com", cfg.CloudflareAccountID)
	}

	cfg.S3UseSSL = getEnvBool("S3_USE_SSL", true)
	// R2 requires the literal region "auto".
	cfg.S3Region = getEnvString("S3_REGION", "auto")
	cfg.PublicBaseURL = os.Getenv("CLOUDFLARE_R2_PUBLIC_URL")

	cfg.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", 2)
	cfg.JobTimeout, err = getEnvDuration("JOB_TIMEOUT", "5m")
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}
	cfg.VideoJobTimeout, err = getEnvDuration("VIDEO_JOB_TIMEOUT", "60m")
	if err != nil {
		return nil, fmt.Errorf("invalid VIDEO_JOB_TIMEOUT: %w", err)
	}
	cfg.MaxRetries = getEnvInt("MAX_RETRIES", 3)

	cfg.TempDir = getEnvString("TEMP_DIR", os.TempDir())
	cfg.FFmpegPath = getEnvString("FFMPEG_PATH", "ffmpeg")
	cfg.FFprobePath = getEnvString("FFPROBE_PATH", "ffprobe")
	cfg.TranscodePreset = getEnvString("TRANSCODE_PRESET", "fast")
	cfg.AudioBitrate = getEnvString("AUDIO_BITRATE", "128k")
	cfg.ThumbnailInterval, err = getEnvDuration("THUMBNAIL_INTERVAL", "10s")
	if err != nil {
		return nil, fmt.Errorf("invalid THUMBNAIL_INTERVAL: %w", err)
	}
	cfg.ThumbnailQuality = getEnvInt("THUMBNAIL_QUALITY", 3)
	cfg.UploadConcurrency = getEnvInt("UPLOAD_CONCURRENCY", 4)

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.0-flash")

	cfg.ResultRetention, err = getEnvDuration("RESULT_RETENTION", "720h")
	if err != nil {
		return nil, fmt.Errorf("invalid RESULT_RETENTION: %w", err)
	}
	cfg.StaleJobAge, err = getEnvDuration("STALE_JOB_AGE", "2h")
	if err != nil {
		return nil, fmt.Errorf("invalid STALE_JOB_AGE: %w", err)
	}

	cfg.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.TracingEndpoint = getEnvString("TRACING_ENDPOINT", "localhost:4317")
	cfg.TracingSampleRate = getEnvFloat("TRACING_SAMPLE_RATE", 1.0)

	cfg.Environment = getEnvString("ENVIRONMENT", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return time.ParseDuration(value)
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("invalid worker concurrency: %d", c.WorkerConcurrency)
	}

	if c.UploadConcurrency < 1 {
		return fmt.Errorf("invalid upload concurrency: %d", c.UploadConcurrency)
	}

	if c.ThumbnailInterval < time.Second {
		return fmt.Errorf("thumbnail interval too small: %s", c.ThumbnailInterval)
	}

	if c.ThumbnailQuality < 1 || c.ThumbnailQuality > 31 {
		return fmt.Errorf("invalid thumbnail quality: %d", c.ThumbnailQuality)
	}

	return nil
}
