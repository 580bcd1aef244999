package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("IAMCORE_POSTGRES_URL", "postgres://localhost/iamcore_test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/iamcore_test", cfg.Database.URL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 4096, cfg.Cache.Size)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Empty(t, cfg.Cache.RedisURL)
	assert.Zero(t, cfg.Audit.RetentionMaxAge)
	assert.Equal(t, "0 3 * * *", cfg.Audit.SweepSchedule)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("IAMCORE_POSTGRES_URL", "postgres://db/iamcore")
	t.Setenv("IAMCORE_POSTGRES_MAX_CONNS", "50")
	t.Setenv("IAMCORE_CACHE_ENABLED", "false")
	t.Setenv("IAMCORE_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("IAMCORE_AUDIT_RETENTION", "720h")
	t.Setenv("IAMCORE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis://cache:6379/2", cfg.Cache.RedisURL)
	assert.Equal(t, 720*time.Hour, cfg.Audit.RetentionMaxAge)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
}

func TestLoadConfigRequiresDatabase(t *testing.T) {
	t.Setenv("IAMCORE_POSTGRES_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres URL")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{URL: "postgres://localhost/x", MaxOpenConns: 10, MaxIdleConns: 2},
			Cache:    CacheConfig{Enabled: true, Size: 100, TTL: time.Second},
			Audit:    AuditConfig{SweepSchedule: "0 3 * * *"},
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.Database.MaxIdleConns = 20
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Cache.Size = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Cache.Enabled = false
	cfg.Cache.Size = 0
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Audit.RetentionMaxAge = time.Hour
	cfg.Audit.SweepSchedule = ""
	assert.Error(t, cfg.Validate())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, parseLogLevel("WARNING"))
	assert.Equal(t, logrus.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, logrus.InfoLevel, parseLogLevel("verbose"))
}
