package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds everything the authorization core needs to run.
type Config struct {
	Database DatabaseConfig
	Cache    CacheConfig
	Audit    AuditConfig
	LogLevel logrus.Level
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnTimeout  time.Duration
}

// CacheConfig holds permission-cache settings. When RedisURL is empty the
// in-process LRU is used.
type CacheConfig struct {
	Enabled  bool
	Size     int
	TTL      time.Duration
	RedisURL string
}

// AuditConfig holds audit retention settings. A zero MaxAge keeps entries
// forever.
type AuditConfig struct {
	RetentionMaxAge time.Duration
	SweepSchedule   string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:          getEnv("IAMCORE_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("IAMCORE_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("IAMCORE_POSTGRES_IDLE_CONNS", 5),
			ConnTimeout:  getEnvDuration("IAMCORE_POSTGRES_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("IAMCORE_CACHE_ENABLED", true),
			Size:     getEnvInt("IAMCORE_CACHE_SIZE", 4096),
			TTL:      getEnvDuration("IAMCORE_CACHE_TTL", 30*time.Second),
			RedisURL: getEnv("IAMCORE_REDIS_URL", ""),
		},
		Audit: AuditConfig{
			RetentionMaxAge: getEnvDuration("IAMCORE_AUDIT_RETENTION", 0),
			SweepSchedule:   getEnv("IAMCORE_AUDIT_SWEEP_SCHEDULE", "0 3 * * *"),
		},
		LogLevel: parseLogLevel(getEnv("IAMCORE_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxOpenConns < c.Database.MaxIdleConns {
		return fmt.Errorf("max open connections must be at least max idle connections")
	}
	if c.Cache.Enabled {
		if c.Cache.Size <= 0 {
			return fmt.Errorf("cache size must be positive when caching is enabled")
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache TTL must be positive when caching is enabled")
		}
	}
	if c.Audit.RetentionMaxAge > 0 && c.Audit.SweepSchedule == "" {
		return fmt.Errorf("audit sweep schedule is required when retention is enabled")
	}
	return nil
}

func parseLogLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
