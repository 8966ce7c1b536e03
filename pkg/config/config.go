// Package config loads application configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string

	// Organizations swept by the worker.
	OrganizationIDs []string

	// Database
	DatabaseURL string
	SQLitePath  string

	// Redis
	RedisURL      string
	ShiftCacheTTL time.Duration

	// RabbitMQ
	RabbitMQURL string

	// Sweep
	SweepInterval time.Duration

	// Escalation
	AutoNotifyEnabled bool

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxStatsInterval    time.Duration
	OutboxRetentionDays    int
	OutboxCleanupInterval  time.Duration
	OutboxProcessorEnabled bool

	// Notifier circuit breaker
	NotifierFailureThreshold int
	NotifierBreakerTimeout   time.Duration

	// Worker
	WorkerHealthAddr string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OrganizationIDs: getListEnv("PODWATCH_ORGANIZATION_IDS"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("PODWATCH_SQLITE_PATH", "podwatch.db"),

		RedisURL:      getEnv("REDIS_URL", ""),
		ShiftCacheTTL: getDurationEnv("PODWATCH_SHIFT_CACHE_TTL", 30*time.Second),

		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		SweepInterval: getDurationEnv("PODWATCH_SWEEP_INTERVAL", time.Minute),

		AutoNotifyEnabled: getBoolEnv("PODWATCH_AUTO_NOTIFY", true),

		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", 100*time.Millisecond),
		OutboxBatchSize:        getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxStatsInterval:    getDurationEnv("OUTBOX_STATS_INTERVAL", 30*time.Second),
		OutboxRetentionDays:    getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxCleanupInterval:  getDurationEnv("OUTBOX_CLEANUP_INTERVAL", 24*time.Hour),
		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),

		NotifierFailureThreshold: getIntEnv("PODWATCH_NOTIFIER_FAILURE_THRESHOLD", 5),
		NotifierBreakerTimeout:   getDurationEnv("PODWATCH_NOTIFIER_BREAKER_TIMEOUT", 30*time.Second),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UseLocalStack reports whether the process should run on SQLite and the
// in-process bus instead of PostgreSQL, Redis and RabbitMQ.
func (c *Config) UseLocalStack() bool {
	return c.DatabaseURL == ""
}

// EffectiveShiftCacheTTL caps the shift cache TTL below the sweep interval.
// A cached snapshot older than one sweep would hide clock-ins for a full
// extra cycle.
func (c *Config) EffectiveShiftCacheTTL() time.Duration {
	if c.SweepInterval > 0 && c.ShiftCacheTTL >= c.SweepInterval {
		return c.SweepInterval / 2
	}
	return c.ShiftCacheTTL
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
