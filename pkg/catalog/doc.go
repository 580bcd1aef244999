// Package catalog defines the closed permission vocabulary and access tiers.
//
// # Overview
//
// A permission is a resource paired with an action, rendered as
// "resource:action" (for example "role:create" or "campaign:close"). The
// catalog is closed: roles may only reference keys defined here, and
// unknown keys are rejected at role creation, so a typo can never silently
// grant or deny access.
//
// # Tiers
//
// Principals carry one of four access tiers: platform_admin,
// tenant_manager, advisor, and customer. Each tier maps to a base
// permission bundle that resolution starts from before roles are unioned
// in.
//
// # Related Packages
//
//   - pkg/rbac: Roles hold sets of catalog permissions
package catalog
