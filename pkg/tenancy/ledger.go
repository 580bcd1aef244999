package tenancy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tenantguard/iamcore/pkg/errdefs"
)

// Ledger persists advisor assignments and enforces their uniqueness and
// primary-exclusivity invariants at the storage layer, so concurrent
// requests cannot race past them.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a ledger backed by the given database.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// EnsureSchema creates the advisor_assignments table and the partial
// unique indexes backing the ledger invariants.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS advisor_assignments (
		id BIGSERIAL PRIMARY KEY,
		advisor_id BIGINT NOT NULL,
		tenant_id BIGINT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		assigned_by BIGINT,
		assigned_at TIMESTAMP NOT NULL DEFAULT NOW(),
		unassigned_at TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_advisor_assignments_active_pair
		ON advisor_assignments(advisor_id, tenant_id) WHERE active;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_advisor_assignments_active_primary
		ON advisor_assignments(tenant_id) WHERE active AND is_primary;
	CREATE INDEX IF NOT EXISTS idx_advisor_assignments_tenant_id
		ON advisor_assignments(tenant_id);
	`
	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure advisor_assignments schema: %w", err)
	}
	return nil
}

// Assign creates an active assignment for the (advisor, tenant) pair. A
// second active assignment for the same pair fails with a conflict. When
// primary is requested, every other active assignment for the tenant loses
// the flag in the same transaction.
func (l *Ledger) Assign(ctx context.Context, advisorID, tenantID int64, primary bool, assignedBy *int64) (*AdvisorAssignment, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if primary {
		_, err := tx.ExecContext(ctx, `
			UPDATE advisor_assignments SET is_primary = FALSE
			WHERE tenant_id = $1 AND active AND is_primary
		`, tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to clear previous primary: %w", err)
		}
	}

	now := time.Now()
	assignment := &AdvisorAssignment{
		AdvisorID:  advisorID,
		TenantID:   tenantID,
		Active:     true,
		Primary:    primary,
		AssignedBy: assignedBy,
		AssignedAt: now,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO advisor_assignments (advisor_id, tenant_id, active, is_primary, assigned_by, assigned_at)
		SELECT $1, $2, TRUE, $3, $4, $5
		WHERE NOT EXISTS (
			SELECT 1 FROM advisor_assignments WHERE advisor_id = $1 AND tenant_id = $2 AND active
		)
		RETURNING id
	`, advisorID, tenantID, primary, assignedBy, now).Scan(&assignment.ID)
	if err == sql.ErrNoRows {
		return nil, errdefs.Conflict("advisor %d already has an active assignment to tenant %d", advisorID, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit assignment: %w", err)
	}
	return assignment, nil
}

// ReassignPrimary makes the given active assignment the tenant's primary,
// clearing the flag from every other active assignment in the same
// transaction.
func (l *Ledger) ReassignPrimary(ctx context.Context, tenantID, assignmentID int64) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE advisor_assignments SET is_primary = FALSE
		WHERE tenant_id = $1 AND active AND is_primary AND id <> $2
	`, tenantID, assignmentID); err != nil {
		return fmt.Errorf("failed to clear previous primary: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE advisor_assignments SET is_primary = TRUE
		WHERE id = $1 AND tenant_id = $2 AND active
	`, assignmentID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to set primary: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errdefs.NotFound("no active assignment %d for tenant %d", assignmentID, tenantID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit primary reassignment: %w", err)
	}
	return nil
}

// Deactivate retires an assignment and stamps the unassignment time. The
// transition is one-way; re-engaging an advisor requires a fresh Assign.
func (l *Ledger) Deactivate(ctx context.Context, assignmentID int64) error {
	result, err := l.db.ExecContext(ctx, `
		UPDATE advisor_assignments
		SET active = FALSE, is_primary = FALSE, unassigned_at = $1
		WHERE id = $2 AND active
	`, time.Now(), assignmentID)
	if err != nil {
		return fmt.Errorf("failed to deactivate assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errdefs.NotFound("assignment not found or already inactive: %d", assignmentID)
	}
	return nil
}

// HasActiveAssignment reports whether the advisor currently holds an
// active assignment to the tenant.
func (l *Ledger) HasActiveAssignment(ctx context.Context, advisorID, tenantID int64) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM advisor_assignments
			WHERE advisor_id = $1 AND tenant_id = $2 AND active
		)
	`, advisorID, tenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active assignment: %w", err)
	}
	return exists, nil
}

// GetAssignment retrieves an assignment by id.
func (l *Ledger) GetAssignment(ctx context.Context, assignmentID int64) (*AdvisorAssignment, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, advisor_id, tenant_id, active, is_primary, assigned_by, assigned_at, unassigned_at
		FROM advisor_assignments
		WHERE id = $1
	`, assignmentID)

	assignment, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, errdefs.NotFound("assignment not found: %d", assignmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return assignment, nil
}

// ListAssignments returns every assignment for a tenant, newest first,
// including deactivated ones (history is never deleted).
func (l *Ledger) ListAssignments(ctx context.Context, tenantID int64) ([]AdvisorAssignment, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, advisor_id, tenant_id, active, is_primary, assigned_by, assigned_at, unassigned_at
		FROM advisor_assignments
		WHERE tenant_id = $1
		ORDER BY assigned_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []AdvisorAssignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, *assignment)
	}
	return assignments, rows.Err()
}

func scanAssignment(scanner interface {
	Scan(dest ...interface{}) error
}) (*AdvisorAssignment, error) {
	var a AdvisorAssignment
	var assignedBy sql.NullInt64
	var unassignedAt sql.NullTime

	err := scanner.Scan(
		&a.ID, &a.AdvisorID, &a.TenantID, &a.Active, &a.Primary,
		&assignedBy, &a.AssignedAt, &unassignedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignedBy.Valid {
		id := assignedBy.Int64
		a.AssignedBy = &id
	}
	if unassignedAt.Valid {
		t := unassignedAt.Time
		a.UnassignedAt = &t
	}
	return &a, nil
}
