// Package decision is the single gate every protected operation passes through.
//
// # Overview
//
// Decide answers one question: may this principal perform these actions in
// this tenant context? It checks required permissions first (ALL or ANY
// mode), then tenant access, and returns a Result carrying the outcome, a
// human-readable reason, and the externally safe denial code.
//
// # Check Ordering
//
// Permission evaluation always runs before the tenant check, so a caller
// who lacks the permission outright receives PERMISSION_DENIED rather than
// a tenant-shaped answer that could leak tenant topology.
//
// # Caching
//
// Effective permission sets are expensive to resolve, so Decide reads them
// through a pluggable Cache: an in-process expirable LRU by default, or
// Redis when deployments share a cache. CachedSource deduplicates
// concurrent resolutions with singleflight and bypasses the cache entirely
// for locked or inactive principals, so a lockout is effective on the very
// next check.
//
// # HTTP Middleware
//
// RequirePermission adapts Decide into gorilla/mux middleware: 401 without
// a principal, 403 on permission denial, and 404 when the denial must stay
// opaque.
//
// # Related Packages
//
//   - pkg/rbac: Supplies effective permission sets
//   - pkg/tenancy: Supplies the tenant access check
package decision
