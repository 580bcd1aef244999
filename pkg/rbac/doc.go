// Package rbac provides role-based access control for the iamcore authorization library.
//
// # Overview
//
// This package implements the principal, role, and group model for a
// multi-tenant platform and resolves them into effective permission sets.
// Roles are either global (usable by any tenant) or tenant-scoped, and
// permissions attach to roles as sets of catalog keys.
//
// # Architecture
//
// The model consists of four parts:
//
//  1. Principals: users and service accounts, each carrying an access tier
//  2. Roles: named permission sets, global or tenant-scoped, with protected system roles
//  3. Groups: tenant-scoped collections of principals that carry their own roles
//  4. Assignments: direct bindings of roles to principals
//
// # Resolution
//
// ResolvePermissions computes a principal's effective permissions as the
// union of the tier's base bundle, directly assigned roles, and roles
// inherited through group membership. Inactive roles, inactive groups, and
// roles scoped to a different tenant contribute nothing. A locked or
// deactivated principal resolves to the empty set regardless of
// assignments, so revoking access never requires touching role rows.
//
// Resolution is pure set algebra: the same inputs always produce the same
// set, in any assignment order, and duplicates collapse.
//
// # Usage Example
//
// Resolve and check permissions:
//
//	store := rbac.NewStore(db)
//	resolver := rbac.NewResolver(store)
//
//	perms, err := resolver.EffectivePermissions(ctx, principalID)
//	if err != nil {
//		return err
//	}
//	if perms.Has(catalog.Permission{Resource: catalog.ResourceRole, Action: catalog.ActionCreate}) {
//		// allowed
//	}
//
// # Related Packages
//
//   - pkg/catalog: The closed permission vocabulary roles draw from
//   - pkg/decision: Combines resolution with tenant checks into decisions
package rbac
