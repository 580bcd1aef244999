package core

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/tenantguard/iamcore/pkg/audit"
	"github.com/tenantguard/iamcore/pkg/config"
	"github.com/tenantguard/iamcore/pkg/decision"
	"github.com/tenantguard/iamcore/pkg/rbac"
	"github.com/tenantguard/iamcore/pkg/review"
	"github.com/tenantguard/iamcore/pkg/tenancy"
)

// Core wires the authorization components into one ready-to-use unit: the
// role store and resolver, the advisor assignment ledger and tenant guard,
// the cached decision point, the review store, and the audit recorder.
type Core struct {
	DB *sql.DB

	Roles    *rbac.Store
	Resolver *rbac.Resolver
	Ledger   *tenancy.Ledger
	Guard    *tenancy.Guard
	Decider  *decision.Decider
	Reviews  *review.Store
	Audit    audit.Recorder
	Sweeper  *audit.Sweeper

	log   *logrus.Logger
	cache decision.Cache
}

// New builds a Core from configuration. The caller owns the returned Core
// and must Close it.
func New(cfg *config.Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetLevel(cfg.LogLevel)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	c := &Core{DB: db, log: log}
	c.Roles = rbac.NewStore(db)
	c.Resolver = rbac.NewResolver(c.Roles)
	c.Ledger = tenancy.NewLedger(db)
	c.Guard = tenancy.NewGuard(c.Ledger)
	c.Reviews = review.NewStore(db)

	recorder := audit.NewDBRecorder(db)
	c.Audit = audit.NewSafeRecorder(recorder, log)
	c.Sweeper = audit.NewSweeper(recorder, audit.RetentionPolicy{
		MaxAge:   cfg.Audit.RetentionMaxAge,
		Schedule: cfg.Audit.SweepSchedule,
	}, log)

	var source decision.PermissionSource = c.Resolver
	if cfg.Cache.Enabled {
		if cfg.Cache.RedisURL != "" {
			redisCache, err := decision.NewRedisCache(cfg.Cache.RedisURL, cfg.Cache.TTL, log)
			if err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to connect permission cache: %w", err)
			}
			c.cache = redisCache
		} else {
			c.cache = decision.NewLRUCache(cfg.Cache.Size, cfg.Cache.TTL)
		}
		source = decision.NewCachedSource(c.Resolver, c.cache)
	}
	c.Decider = decision.NewDecider(source, c.Guard)

	return c, nil
}

// Migrate applies every schema the core needs and seeds the system roles.
func (c *Core) Migrate(ctx context.Context) error {
	if err := rbac.RunMigrations(ctx, c.DB); err != nil {
		return err
	}
	if err := rbac.SeedSystemRoles(ctx, c.Roles); err != nil {
		return err
	}
	if err := c.Ledger.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := c.Reviews.EnsureSchema(ctx); err != nil {
		return err
	}
	return audit.NewDBRecorder(c.DB).EnsureSchema(ctx)
}

// StartRetention begins scheduled audit sweeps. No-op when retention is
// disabled.
func (c *Core) StartRetention() error {
	return c.Sweeper.Start()
}

// Close stops background work and releases connections.
func (c *Core) Close() error {
	c.Sweeper.Stop()
	if closer, ok := c.cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			c.log.WithError(err).Warn("failed to close permission cache")
		}
	}
	return c.DB.Close()
}
