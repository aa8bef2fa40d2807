// Package config loads reelctl's settings from ~/.config/reelctl/config.yaml,
// with environment variables taking precedence.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL  string        `yaml:"base_url,omitempty"`
	Timeouts TimeoutConfig `yaml:"timeouts,omitempty"`
}

// TimeoutConfig holds durations as strings parseable by time.ParseDuration
// (e.g. "5m", "30s").
type TimeoutConfig struct {
	HTTP  string `yaml:"http,omitempty"`  // HTTP client timeout (default: 5m)
	Watch string `yaml:"watch,omitempty"` // status --watch timeout (default: 30m)
	Fetch string `yaml:"fetch,omitempty"` // output download timeout (default: 15m)
}

const (
	DefaultBaseURL = "http://localhost:8080"

	EnvBaseURL = "REELCTL_BASE_URL"

	DefaultHTTPTimeout  = 5 * time.Minute
	DefaultWatchTimeout = 30 * time.Minute
	DefaultFetchTimeout = 15 * time.Minute
)

func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "reelctl"), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func Load() (*Config, error) {
	cfg := &Config{
		BaseURL: DefaultBaseURL,
	}

	path, err := Path()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if envURL := os.Getenv(EnvBaseURL); envURL != "" {
		cfg.BaseURL = envURL
	}
}

func (c *Config) Save() error {
	dir, err := Dir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := Path()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// GetTimeout returns the configured timeout for the given operation.
// Valid names: "http", "watch", "fetch".
func (c *Config) GetTimeout(name string) time.Duration {
	var configValue string
	var defaultValue time.Duration

	switch name {
	case "http":
		configValue = c.Timeouts.HTTP
		defaultValue = DefaultHTTPTimeout
	case "watch":
		configValue = c.Timeouts.Watch
		defaultValue = DefaultWatchTimeout
	case "fetch":
		configValue = c.Timeouts.Fetch
		defaultValue = DefaultFetchTimeout
	default:
		return 5 * time.Minute
	}

	if configValue == "" {
		return defaultValue
	}

	parsed, err := time.ParseDuration(configValue)
	if err != nil {
		return defaultValue
	}
	return parsed
}
