// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Database settings:
//
//	IAMCORE_POSTGRES_URL="postgres://localhost/iamcore"
//	IAMCORE_POSTGRES_MAX_CONNS="25"
//	IAMCORE_POSTGRES_IDLE_CONNS="5"
//	IAMCORE_POSTGRES_TIMEOUT="10s"
//
// Permission cache settings:
//
//	IAMCORE_CACHE_ENABLED="true"
//	IAMCORE_CACHE_SIZE="4096"
//	IAMCORE_CACHE_TTL="30s"
//	IAMCORE_REDIS_URL="redis://localhost:6379"  # empty selects the in-process LRU
//
// Audit retention settings:
//
//	IAMCORE_AUDIT_RETENTION="2160h"  # zero keeps entries forever
//	IAMCORE_AUDIT_SWEEP_SCHEDULE="0 3 * * *"
//
// Logging settings:
//
//	IAMCORE_LOG_LEVEL="info"  # debug, info, warn, error
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Database: %s\n", cfg.Database.URL)
//	fmt.Printf("Log level: %s\n", cfg.LogLevel)
//
// # Related Packages
//
//   - pkg/core: Builds the full authorization core from a Config
package config
