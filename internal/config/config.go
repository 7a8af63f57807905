// Package config loads application configuration from the environment,
// following the same Default*Config()/Validate() shape used throughout the
// persistence and jobs packages.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/icon-forge/iconforge/internal/infrastructure/secrets"
)

// Config holds all environment-derived application settings.
type Config struct {
	Port string

	DatabaseURL   string
	AdminPassword string
	CORSOrigin    string
	LogLevel      string

	QueueMax               int
	JobTimeoutSeconds      int
	WorkerPoolSize         int
	RedisAddr              string
	RedisPassword          string
	RateLimitWindowSeconds int
	RateLimitMaxRequests   int
	MetricsQueueConcurrency int
}

const (
	defaultPort                    = "8080"
	defaultQueueMax                = 100
	defaultJobTimeoutSeconds       = 30
	defaultRateLimitWindowSeconds  = 3600
	defaultRateLimitMaxRequests    = 60
	defaultMetricsQueueConcurrency = 5
	defaultRedisAddr               = "localhost:6379"
)

// Load reads configuration from the environment, falling back to defaults
// for anything unset. Secrets (DATABASE_URL, ADMIN_PASSWORD, REDIS_PASSWORD)
// are resolved through a secrets.SecretProvider, selectable via
// SECRET_PROVIDER ("env", the default, or "docker" for Docker/Kubernetes
// mounted secrets), so secrets can be swapped from plain environment
// variables to Docker Secrets without touching this package.
func Load() (Config, error) {
	provider, err := secrets.NewProvider(secrets.SecretConfig{
		Provider:          getEnv("SECRET_PROVIDER", "env"),
		DockerSecretsPath: os.Getenv("DOCKER_SECRETS_PATH"),
	})
	if err != nil {
		return Config{}, fmt.Errorf("init secret provider: %w", err)
	}

	ctx := context.Background()

	cfg := Config{
		Port:          getEnv("PORT", defaultPort),
		DatabaseURL:   provider.GetSecretWithDefault(ctx, secrets.SecretDatabaseURL, ""),
		AdminPassword: provider.GetSecretWithDefault(ctx, secrets.SecretAdminPassword, ""),
		CORSOrigin:    getEnv("CORS_ORIGIN", "*"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", defaultRedisAddr),
		RedisPassword: provider.GetSecretWithDefault(ctx, secrets.SecretRedisPassword, ""),
	}
	if cfg.QueueMax, err = getEnvInt("QUEUE_MAX", defaultQueueMax); err != nil {
		return Config{}, err
	}
	if cfg.JobTimeoutSeconds, err = getEnvInt("JOB_TIMEOUT_SECONDS", defaultJobTimeoutSeconds); err != nil {
		return Config{}, err
	}
	if cfg.WorkerPoolSize, err = getEnvInt("WORKER_POOL_SIZE", 0); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindowSeconds, err = getEnvInt("RATE_LIMIT_WINDOW_SECONDS", defaultRateLimitWindowSeconds); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitMaxRequests, err = getEnvInt("RATE_LIMIT_MAX_REQUESTS", defaultRateLimitMaxRequests); err != nil {
		return Config{}, err
	}
	if cfg.MetricsQueueConcurrency, err = getEnvInt("METRICS_QUEUE_CONCURRENCY", defaultMetricsQueueConcurrency); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and sane.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required")
	}
	if c.QueueMax <= 0 {
		return fmt.Errorf("QUEUE_MAX must be positive")
	}
	return nil
}

// JobTimeout returns the per-job deadline as a time.Duration.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// RateLimitWindow returns the rate limit window as a time.Duration.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
