package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendURL      string
	EnableHSTS       bool
	OIDCProvider     string
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool

	// SchedulerTimezone is the IANA name that defines calendar-day boundaries
	SchedulerTimezone string
	Location          *time.Location
	QueueCacheTTL     time.Duration
	SnapshotCron      string
	DLQRetention      time.Duration
	DLQGCInterval     time.Duration

	OTELEnabled      bool
	OTELEndpoint     string
	OTELInsecure     bool
	OTELSamplerRatio float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:       getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:        getEnvBool("ENABLE_HSTS", false),
		OIDCProvider:      getEnv("OIDC_PROVIDER", "cognito"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:       getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:  getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:   getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:   getEnvBool("SERVER_DEBUG_MODE", false),
		SchedulerTimezone: getEnv("SCHEDULER_TIMEZONE", "UTC"),
		SnapshotCron:      getEnv("SNAPSHOT_CRON", "5 0 * * *"),
		OTELEnabled:       getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:      getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		OTELSamplerRatio:  clampRatio(getEnvFloat("OTEL_SAMPLER_RATIO", 1.0)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	loc, err := time.LoadLocation(cfg.SchedulerTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TIMEZONE %q: %w", cfg.SchedulerTimezone, err)
	}
	cfg.Location = loc

	if _, err := cron.ParseStandard(cfg.SnapshotCron); err != nil {
		return nil, fmt.Errorf("invalid SNAPSHOT_CRON %q: %w", cfg.SnapshotCron, err)
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"QUEUE_CACHE_TTL", 10 * time.Minute, &cfg.QueueCacheTTL},
		{"DLQ_RETENTION", 7 * 24 * time.Hour, &cfg.DLQRetention},
		{"DLQ_GC_INTERVAL", time.Hour, &cfg.DLQGCInterval},
	}
	for _, d := range durations {
		value, err := getEnvDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dest = value
	}

	return cfg, nil
}

// JobsEnabled reports whether a job queue is configured
func (c *Config) JobsEnabled() bool {
	return c.RabbitMQURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
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

// getEnvDuration parses a Go duration such as "10m". Non-positive values are rejected.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, value)
	}
	return d, nil
}

func clampRatio(ratio float64) float64 {
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	default:
		return ratio
	}
}
