// Package tenancy enforces tenant isolation and tracks advisor-to-tenant assignments.
//
// # Overview
//
// Every request operates in the context of exactly one tenant. This package
// resolves that context from the request, checks whether a principal may
// act within it, and maintains the ledger of which advisors are assigned to
// which tenants.
//
// # Tenant Context Resolution
//
// Resolve walks a fixed precedence order and takes the first usable source:
//
//  1. URL path parameter (gorilla/mux route variable "tenant_id")
//  2. X-Tenant-ID request header
//  3. Query parameter
//  4. The principal's home tenant
//
// The first non-empty source wins outright: a malformed value there is a
// validation failure, never a fall-through to a lower-precedence source.
//
// # Access Rules
//
// Guard.CheckTenantAccess applies three rules in order: platform-tier
// principals may act in any tenant; advisor-tier principals need an active
// ledger assignment to the target tenant; everyone else is confined to
// their home tenant. Denials are TENANT_ACCESS_DENIED internally and
// surface externally as NOT_FOUND so probing cannot confirm that a foreign
// tenant exists.
//
// # Assignment Ledger
//
// The ledger allows at most one active assignment per advisor/tenant pair
// and at most one primary advisor per tenant, both enforced with partial
// unique indexes. Deactivation is one-way: the row keeps its history and
// UnassignedAt timestamp, and a fresh Assign creates a new row.
//
// # Related Packages
//
//   - pkg/decision: Calls the guard as the second stage of every decision
//   - pkg/errdefs: The error kinds the guard and ledger return
package tenancy
