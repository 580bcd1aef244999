package rbac

import (
	"context"
	"fmt"
	"sort"

	"github.com/tenantguard/iamcore/pkg/catalog"
)

// PermissionSet is a deduplicated set of permission keys.
type PermissionSet map[catalog.Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...catalog.Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Add inserts a permission into the set.
func (s PermissionSet) Add(p catalog.Permission) {
	s[p] = struct{}{}
}

// Union inserts every permission from other into s.
func (s PermissionSet) Union(other []catalog.Permission) {
	for _, p := range other {
		s[p] = struct{}{}
	}
}

// Has reports whether the set contains p.
func (s PermissionSet) Has(p catalog.Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAll reports whether the set contains every required permission.
func (s PermissionSet) HasAll(required []catalog.Permission) bool {
	for _, p := range required {
		if _, ok := s[p]; !ok {
			return false
		}
	}
	return true
}

// HasAny reports whether the set contains at least one required
// permission. An empty requirement matches nothing.
func (s PermissionSet) HasAny(required []catalog.Permission) bool {
	for _, p := range required {
		if _, ok := s[p]; ok {
			return true
		}
	}
	return false
}

// List returns the set's permissions sorted by key for stable output.
func (s PermissionSet) List() []catalog.Permission {
	out := make([]catalog.Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// ResolvePermissions computes the effective permission set for a
// principal: the tier default bundle, unioned with every directly assigned
// active role and every role attached to an active group the principal
// belongs to. Roles contribute only when global-scoped or scoped to the
// principal's home tenant. Locked or inactive principals resolve to the
// empty set. Pure function; aggregation order is irrelevant.
func ResolvePermissions(p *Principal, direct []Role, groups []GroupRoles) PermissionSet {
	set := make(PermissionSet)
	if p == nil || !p.Active || p.Locked {
		return set
	}

	set.Union(catalog.TierBundle(p.Tier))

	for _, role := range direct {
		if roleContributes(role, p) {
			set.Union(role.Permissions)
		}
	}

	for _, g := range groups {
		if !g.Group.Active {
			continue
		}
		for _, role := range g.Roles {
			if roleContributes(role, p) {
				set.Union(role.Permissions)
			}
		}
	}

	return set
}

// roleContributes applies the scope rule: inactive roles never contribute;
// tenant-scoped roles contribute only within the principal's home tenant.
func roleContributes(role Role, p *Principal) bool {
	if !role.Active {
		return false
	}
	if role.TenantID == nil {
		return true
	}
	return p.TenantID != nil && *role.TenantID == *p.TenantID
}

// Resolver loads assignment state from the store and resolves effective
// permissions.
type Resolver struct {
	store *Store
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// EffectivePermissions resolves the effective permission set for a
// principal by id.
func (r *Resolver) EffectivePermissions(ctx context.Context, principalID int64) (PermissionSet, error) {
	principal, err := r.store.GetPrincipal(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}
	return r.EffectivePermissionsFor(ctx, principal)
}

// EffectivePermissionsFor resolves permissions for an already loaded
// principal, skipping the store reads entirely for locked identities.
func (r *Resolver) EffectivePermissionsFor(ctx context.Context, principal *Principal) (PermissionSet, error) {
	if principal == nil || !principal.Active || principal.Locked {
		return make(PermissionSet), nil
	}

	direct, err := r.store.ListDirectRoles(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load direct roles: %w", err)
	}

	groups, err := r.store.ListGroupRoles(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group roles: %w", err)
	}

	return ResolvePermissions(principal, direct, groups), nil
}
