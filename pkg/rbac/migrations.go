package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tenantguard/iamcore/pkg/errdefs"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all RBAC migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create principals table",
			SQL: `
				CREATE TABLE IF NOT EXISTS principals (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(255) NOT NULL UNIQUE,
					tenant_id BIGINT,
					tier VARCHAR(50) NOT NULL,
					is_service BOOLEAN DEFAULT FALSE,
					active BOOLEAN DEFAULT TRUE,
					locked BOOLEAN DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_principals_tenant_id ON principals(tenant_id);
				CREATE INDEX idx_principals_tier ON principals(tier);
			`,
		},
		{
			Version:     2,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					display_name VARCHAR(255) NOT NULL,
					description TEXT,
					tenant_id BIGINT,
					permissions JSONB NOT NULL DEFAULT '[]',
					is_system BOOLEAN DEFAULT FALSE,
					active BOOLEAN DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by BIGINT REFERENCES principals(id) ON DELETE SET NULL
				);

				CREATE UNIQUE INDEX idx_roles_name_scope ON roles(name, COALESCE(tenant_id, 0));
				CREATE INDEX idx_roles_tenant_id ON roles(tenant_id);
				CREATE INDEX idx_roles_name ON roles(name);
				CREATE INDEX idx_roles_is_system ON roles(is_system);
			`,
		},
		{
			Version:     3,
			Description: "Create role_assignments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_assignments (
					id BIGSERIAL PRIMARY KEY,
					principal_id BIGINT NOT NULL REFERENCES principals(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					granted_by BIGINT REFERENCES principals(id) ON DELETE SET NULL,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(principal_id, role_id)
				);

				CREATE INDEX idx_role_assignments_principal_id ON role_assignments(principal_id);
				CREATE INDEX idx_role_assignments_role_id ON role_assignments(role_id);
			`,
		},
		{
			Version:     4,
			Description: "Create groups table",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT,
					name VARCHAR(255) NOT NULL,
					display_name VARCHAR(255) NOT NULL,
					description TEXT,
					active BOOLEAN DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by BIGINT REFERENCES principals(id) ON DELETE SET NULL
				);

				CREATE UNIQUE INDEX idx_groups_name_scope ON groups(name, COALESCE(tenant_id, 0));
				CREATE INDEX idx_groups_tenant_id ON groups(tenant_id);
			`,
		},
		{
			Version:     5,
			Description: "Create group_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS group_members (
					id BIGSERIAL PRIMARY KEY,
					group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					principal_id BIGINT NOT NULL REFERENCES principals(id) ON DELETE CASCADE,
					added_at TIMESTAMP NOT NULL DEFAULT NOW(),
					added_by BIGINT REFERENCES principals(id) ON DELETE SET NULL,
					UNIQUE(group_id, principal_id)
				);

				CREATE INDEX idx_group_members_group_id ON group_members(group_id);
				CREATE INDEX idx_group_members_principal_id ON group_members(principal_id);
			`,
		},
		{
			Version:     6,
			Description: "Create group_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS group_roles (
					id BIGSERIAL PRIMARY KEY,
					group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					attached_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(group_id, role_id)
				);

				CREATE INDEX idx_group_roles_group_id ON group_roles(group_id);
				CREATE INDEX idx_group_roles_role_id ON group_roles(role_id);
			`,
		},
	}
}

// RunMigrations applies all pending RBAC migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	// Ensure migrations tracking table exists
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rbac_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range GetMigrations() {
		var applied bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM rbac_migrations WHERE version = $1)`,
			migration.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", migration.Version, err)
		}
		if applied {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rbac_migrations (version, description) VALUES ($1, $2)`,
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SeedSystemRoles creates the system roles if they do not already exist
func SeedSystemRoles(ctx context.Context, store *Store) error {
	for _, role := range SystemRoles() {
		role := role
		err := store.CreateRole(ctx, &role)
		if err != nil && !errdefs.IsConflict(err) {
			return fmt.Errorf("failed to seed system role %s: %w", role.Name, err)
		}
	}
	return nil
}
