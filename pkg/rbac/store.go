package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tenantguard/iamcore/pkg/catalog"
	"github.com/tenantguard/iamcore/pkg/errdefs"
)

// Store handles principal, role and group persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreatePrincipal creates a new principal
func (s *Store) CreatePrincipal(ctx context.Context, p *Principal) error {
	if !p.Tier.Valid() {
		return errdefs.Validation("unknown role tier: %q", p.Tier)
	}
	if p.Tier.IsPlatform() && p.TenantID != nil {
		return errdefs.Validation("platform-tier principals carry no home tenant")
	}

	query := `
		INSERT INTO principals (username, tenant_id, tier, is_service, active, locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, FALSE, $5, $5)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		p.Username, p.TenantID, p.Tier, p.IsService, now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create principal: %w", err)
	}

	p.Active = true
	p.Locked = false
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetPrincipal retrieves a principal by ID
func (s *Store) GetPrincipal(ctx context.Context, principalID int64) (*Principal, error) {
	query := `
		SELECT id, username, tenant_id, tier, is_service, active, locked, created_at, updated_at
		FROM principals
		WHERE id = $1
	`

	var p Principal
	var tenantID sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, principalID).Scan(
		&p.ID, &p.Username, &tenantID, &p.Tier, &p.IsService,
		&p.Active, &p.Locked, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errdefs.NotFound("principal not found: %d", principalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}

	if tenantID.Valid {
		id := tenantID.Int64
		p.TenantID = &id
	}
	return &p, nil
}

// SetPrincipalLocked locks or unlocks a principal. Locked principals
// resolve to zero permissions.
func (s *Store) SetPrincipalLocked(ctx context.Context, principalID int64, locked bool) error {
	query := `UPDATE principals SET locked = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, locked, time.Now(), principalID)
	if err != nil {
		return fmt.Errorf("failed to update principal lock: %w", err)
	}
	return requireRow(result, "principal not found: %d", principalID)
}

// DeactivatePrincipal soft-deletes a principal. Principals are never
// physically removed.
func (s *Store) DeactivatePrincipal(ctx context.Context, principalID int64) error {
	query := `UPDATE principals SET active = FALSE, updated_at = $1 WHERE id = $2 AND active`
	result, err := s.db.ExecContext(ctx, query, time.Now(), principalID)
	if err != nil {
		return fmt.Errorf("failed to deactivate principal: %w", err)
	}
	return requireRow(result, "principal not found or already inactive: %d", principalID)
}

// CreateRole creates a new custom role. Permission keys must exist in the
// catalog.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	for _, p := range role.Permissions {
		if !p.Valid() {
			return errdefs.Validation("unknown permission key: %q", p.String())
		}
	}

	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO roles (name, display_name, description, tenant_id, permissions, is_system, active, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7, $8)
		ON CONFLICT (name, COALESCE(tenant_id, 0)) DO NOTHING
		RETURNING id
	`

	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		role.Name, role.DisplayName, role.Description, role.TenantID,
		string(permissionsJSON), role.IsSystem, now, role.CreatedBy,
	).Scan(&role.ID)
	if err == sql.ErrNoRows {
		return errdefs.Conflict("role %q already exists in scope", role.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.Active = true
	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	query := `
		SELECT id, name, display_name, description, tenant_id, permissions, is_system, active, created_at, updated_at, created_by
		FROM roles
		WHERE id = $1
	`
	role, err := scanRole(s.db.QueryRowContext(ctx, query, roleID))
	if err == sql.ErrNoRows {
		return nil, errdefs.NotFound("role not found: %d", roleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListRoles lists roles visible in a tenant scope: the tenant's own roles
// plus global ones.
func (s *Store) ListRoles(ctx context.Context, tenantID *int64) ([]Role, error) {
	query := `
		SELECT id, name, display_name, description, tenant_id, permissions, is_system, active, created_at, updated_at, created_by
		FROM roles
		WHERE tenant_id = $1 OR tenant_id IS NULL
		ORDER BY is_system DESC, name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

// UpdateRolePermissions replaces a role's permission set. System roles may
// only be edited by platform-tier actors.
func (s *Store) UpdateRolePermissions(ctx context.Context, roleID int64, perms []catalog.Permission, actorTier catalog.Tier) error {
	for _, p := range perms {
		if !p.Valid() {
			return errdefs.Validation("unknown permission key: %q", p.String())
		}
	}

	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem && !actorTier.IsPlatform() {
		return errdefs.PermissionDenied("system role %q may only be edited by platform administrators", role.Name)
	}

	permissionsJSON, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `UPDATE roles SET permissions = $1, updated_at = $2 WHERE id = $3`
	if _, err := s.db.ExecContext(ctx, query, string(permissionsJSON), time.Now(), roleID); err != nil {
		return fmt.Errorf("failed to update role permissions: %w", err)
	}
	return nil
}

// DeactivateRole soft-deactivates a custom role. System roles cannot be
// deactivated; custom roles are never hard-deleted, preserving audit
// continuity.
func (s *Store) DeactivateRole(ctx context.Context, roleID int64) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return errdefs.Conflict("system role %q cannot be deleted", role.Name)
	}

	query := `UPDATE roles SET active = FALSE, updated_at = $1 WHERE id = $2 AND active`
	result, err := s.db.ExecContext(ctx, query, time.Now(), roleID)
	if err != nil {
		return fmt.Errorf("failed to deactivate role: %w", err)
	}
	return requireRow(result, "role not found or already inactive: %d", roleID)
}

// AssignRole directly assigns a role to a principal
func (s *Store) AssignRole(ctx context.Context, assignment *RoleAssignment) error {
	query := `
		INSERT INTO role_assignments (principal_id, role_id, granted_by, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (principal_id, role_id) DO NOTHING
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		assignment.PrincipalID, assignment.RoleID, assignment.GrantedBy, now,
	).Scan(&assignment.ID)
	if err == sql.ErrNoRows {
		return errdefs.Conflict("role %d already assigned to principal %d", assignment.RoleID, assignment.PrincipalID)
	}
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	assignment.GrantedAt = now
	return nil
}

// RevokeRole removes a direct role assignment from a principal
func (s *Store) RevokeRole(ctx context.Context, principalID, roleID int64) error {
	query := `DELETE FROM role_assignments WHERE principal_id = $1 AND role_id = $2`
	result, err := s.db.ExecContext(ctx, query, principalID, roleID)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	return requireRow(result, "role %d not assigned to principal %d", roleID, principalID)
}

// ReplaceAssignments atomically replaces every direct role assignment of a
// principal with the given role set. Used when a review decision requests
// an entitlement change.
func (s *Store) ReplaceAssignments(ctx context.Context, principalID int64, roleIDs []int64, grantedBy *int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_assignments WHERE principal_id = $1`, principalID); err != nil {
		return fmt.Errorf("failed to clear assignments: %w", err)
	}

	now := time.Now()
	for _, roleID := range roleIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO role_assignments (principal_id, role_id, granted_by, granted_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (principal_id, role_id) DO NOTHING
		`, principalID, roleID, grantedBy, now)
		if err != nil {
			return fmt.Errorf("failed to insert assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assignment replacement: %w", err)
	}
	return nil
}

// ClearMemberships removes a principal from every group. Used when a
// review decision revokes all access.
func (s *Store) ClearMemberships(ctx context.Context, principalID int64) error {
	query := `DELETE FROM group_members WHERE principal_id = $1`
	if _, err := s.db.ExecContext(ctx, query, principalID); err != nil {
		return fmt.Errorf("failed to clear group memberships: %w", err)
	}
	return nil
}

// CreateGroup creates a new group. Group names are unique within their
// scope.
func (s *Store) CreateGroup(ctx context.Context, group *Group) error {
	query := `
		INSERT INTO groups (tenant_id, name, display_name, description, active, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5, $6)
		ON CONFLICT (name, COALESCE(tenant_id, 0)) DO NOTHING
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		group.TenantID, group.Name, group.DisplayName, group.Description, now, group.CreatedBy,
	).Scan(&group.ID)
	if err == sql.ErrNoRows {
		return errdefs.Conflict("group %q already exists in scope", group.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	group.Active = true
	group.CreatedAt = now
	group.UpdatedAt = now
	return nil
}

// GetGroup retrieves a group by ID
func (s *Store) GetGroup(ctx context.Context, groupID int64) (*Group, error) {
	query := `
		SELECT id, tenant_id, name, display_name, description, active, created_at, updated_at, created_by
		FROM groups
		WHERE id = $1
	`

	var group Group
	var tenantID, createdBy sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, groupID).Scan(
		&group.ID, &tenantID, &group.Name, &group.DisplayName, &group.Description,
		&group.Active, &group.CreatedAt, &group.UpdatedAt, &createdBy,
	)
	if err == sql.ErrNoRows {
		return nil, errdefs.NotFound("group not found: %d", groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	if tenantID.Valid {
		id := tenantID.Int64
		group.TenantID = &id
	}
	if createdBy.Valid {
		id := createdBy.Int64
		group.CreatedBy = &id
	}
	return &group, nil
}

// DeactivateGroup soft-deactivates a group
func (s *Store) DeactivateGroup(ctx context.Context, groupID int64) error {
	query := `UPDATE groups SET active = FALSE, updated_at = $1 WHERE id = $2 AND active`
	result, err := s.db.ExecContext(ctx, query, time.Now(), groupID)
	if err != nil {
		return fmt.Errorf("failed to deactivate group: %w", err)
	}
	return requireRow(result, "group not found or already inactive: %d", groupID)
}

// AddGroupMember adds a principal to a group. Members are mutated one at a
// time, never replaced wholesale, to keep audit diffs minimal.
func (s *Store) AddGroupMember(ctx context.Context, member *GroupMember) error {
	query := `
		INSERT INTO group_members (group_id, principal_id, added_at, added_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, principal_id) DO NOTHING
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		member.GroupID, member.PrincipalID, now, member.AddedBy,
	).Scan(&member.ID)
	if err == sql.ErrNoRows {
		return errdefs.Conflict("principal %d is already a member of group %d", member.PrincipalID, member.GroupID)
	}
	if err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}

	member.AddedAt = now
	return nil
}

// RemoveGroupMember removes a principal from a group
func (s *Store) RemoveGroupMember(ctx context.Context, groupID, principalID int64) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND principal_id = $2`
	result, err := s.db.ExecContext(ctx, query, groupID, principalID)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return requireRow(result, "principal %d is not a member of group %d", principalID, groupID)
}

// AttachGroupRole attaches a role to a group
func (s *Store) AttachGroupRole(ctx context.Context, groupID, roleID int64) error {
	query := `
		INSERT INTO group_roles (group_id, role_id, attached_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, role_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, groupID, roleID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to attach group role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errdefs.Conflict("role %d already attached to group %d", roleID, groupID)
	}
	return nil
}

// DetachGroupRole detaches a role from a group
func (s *Store) DetachGroupRole(ctx context.Context, groupID, roleID int64) error {
	query := `DELETE FROM group_roles WHERE group_id = $1 AND role_id = $2`
	result, err := s.db.ExecContext(ctx, query, groupID, roleID)
	if err != nil {
		return fmt.Errorf("failed to detach group role: %w", err)
	}
	return requireRow(result, "role %d not attached to group %d", roleID, groupID)
}

// ListDirectRoles loads every role directly assigned to a principal
func (s *Store) ListDirectRoles(ctx context.Context, principalID int64) ([]Role, error) {
	query := `
		SELECT r.id, r.name, r.display_name, r.description, r.tenant_id, r.permissions, r.is_system, r.active, r.created_at, r.updated_at, r.created_by
		FROM roles r
		JOIN role_assignments ra ON r.id = ra.role_id
		WHERE ra.principal_id = $1
		ORDER BY r.name ASC
	`
	return s.queryRoles(ctx, query, principalID)
}

// ListGroupRoles loads the active groups a principal belongs to together
// with the roles attached to each.
func (s *Store) ListGroupRoles(ctx context.Context, principalID int64) ([]GroupRoles, error) {
	query := `
		SELECT g.id, g.tenant_id, g.name, g.display_name, g.description, g.active, g.created_at, g.updated_at,
		       r.id, r.name, r.display_name, r.description, r.tenant_id, r.permissions, r.is_system, r.active, r.created_at, r.updated_at, r.created_by
		FROM groups g
		JOIN group_members gm ON g.id = gm.group_id
		JOIN group_roles gr ON g.id = gr.group_id
		JOIN roles r ON r.id = gr.role_id
		WHERE gm.principal_id = $1 AND g.active
		ORDER BY g.id ASC, r.name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group roles: %w", err)
	}
	defer rows.Close()

	byGroup := make(map[int64]*GroupRoles)
	var order []int64
	for rows.Next() {
		var g Group
		var gTenantID sql.NullInt64
		var role Role
		var permissionsJSON string
		var rTenantID, createdBy sql.NullInt64

		err := rows.Scan(
			&g.ID, &gTenantID, &g.Name, &g.DisplayName, &g.Description, &g.Active, &g.CreatedAt, &g.UpdatedAt,
			&role.ID, &role.Name, &role.DisplayName, &role.Description, &rTenantID,
			&permissionsJSON, &role.IsSystem, &role.Active, &role.CreatedAt, &role.UpdatedAt, &createdBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group role: %w", err)
		}

		if gTenantID.Valid {
			id := gTenantID.Int64
			g.TenantID = &id
		}
		if rTenantID.Valid {
			id := rTenantID.Int64
			role.TenantID = &id
		}
		if createdBy.Valid {
			id := createdBy.Int64
			role.CreatedBy = &id
		}
		if err := json.Unmarshal([]byte(permissionsJSON), &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}

		entry, ok := byGroup[g.ID]
		if !ok {
			entry = &GroupRoles{Group: g}
			byGroup[g.ID] = entry
			order = append(order, g.ID)
		}
		entry.Roles = append(entry.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]GroupRoles, 0, len(order))
	for _, id := range order {
		out = append(out, *byGroup[id])
	}
	return out, nil
}

func (s *Store) queryRoles(ctx context.Context, query string, args ...interface{}) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

// scanRole scans a role from a database row
func scanRole(scanner interface {
	Scan(dest ...interface{}) error
}) (*Role, error) {
	var role Role
	var permissionsJSON string
	var tenantID, createdBy sql.NullInt64

	err := scanner.Scan(
		&role.ID,
		&role.Name,
		&role.DisplayName,
		&role.Description,
		&tenantID,
		&permissionsJSON,
		&role.IsSystem,
		&role.Active,
		&role.CreatedAt,
		&role.UpdatedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}

	if tenantID.Valid {
		id := tenantID.Int64
		role.TenantID = &id
	}
	if createdBy.Valid {
		id := createdBy.Int64
		role.CreatedBy = &id
	}

	if permissionsJSON != "" {
		if err := json.Unmarshal([]byte(permissionsJSON), &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	} else {
		role.Permissions = []catalog.Permission{}
	}

	return &role, nil
}

// requireRow converts a zero-rows-affected result into a NotFound error
func requireRow(result sql.Result, format string, args ...interface{}) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errdefs.NotFound(format, args...)
	}
	return nil
}
