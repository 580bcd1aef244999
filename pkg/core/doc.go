// Package core assembles the authorization components from configuration.
//
// # Overview
//
// New builds the whole stack from a config.Config: the database pool, the
// role store and permission resolver, the advisor assignment ledger and
// tenant guard, the cached decision point (LRU or Redis), the review
// store, and the fire-and-forget audit recorder with its retention
// sweeper. Migrate applies every schema and seeds the system roles.
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	c, err := core.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	if err := c.Migrate(ctx); err != nil {
//		log.Fatal(err)
//	}
//	result, err := c.Decider.Decide(ctx, check)
package core
