package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/tenantguard/iamcore/pkg/errdefs"
)

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
}

// DBRecorder persists entries to Postgres. Change details are stored as a
// JSON column the way role permissions are.
type DBRecorder struct {
	db *sql.DB
}

func NewDBRecorder(db *sql.DB) *DBRecorder {
	return &DBRecorder{db: db}
}

var auditSchema = []string{
	`CREATE TABLE IF NOT EXISTS audit_entries (
		id BIGSERIAL PRIMARY KEY,
		tenant_id BIGINT,
		actor_id BIGINT,
		actor_type VARCHAR(16) NOT NULL DEFAULT 'user',
		action VARCHAR(64) NOT NULL,
		target_type VARCHAR(64) NOT NULL,
		target_id VARCHAR(255) NOT NULL,
		target_name VARCHAR(255) NOT NULL DEFAULT '',
		changes TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_tenant ON audit_entries(tenant_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_target ON audit_entries(target_type, target_id, id)`,
}

func (r *DBRecorder) EnsureSchema(ctx context.Context) error {
	for _, stmt := range auditSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return errdefs.Internal(err, "apply audit schema")
		}
	}
	return nil
}

// Record appends one entry and stamps the generated id back.
func (r *DBRecorder) Record(ctx context.Context, e *Entry) error {
	if e.Action == "" {
		return errdefs.Validation("audit entry requires an action")
	}
	if e.TargetType == "" || e.TargetID == "" {
		return errdefs.Validation("audit entry requires a target")
	}
	if e.ActorType == "" {
		e.ActorType = ActorUser
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var changes interface{}
	if e.Changes.Before != nil || e.Changes.After != nil {
		raw, err := json.Marshal(e.Changes)
		if err != nil {
			return errdefs.Internal(err, "marshal audit changes")
		}
		changes = string(raw)
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO audit_entries (
			tenant_id, actor_id, actor_type, action,
			target_type, target_id, target_name, changes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		e.TenantID, e.ActorID, e.ActorType, e.Action,
		e.TargetType, e.TargetID, e.TargetName, changes, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return errdefs.Internal(err, "insert audit entry")
	}
	return nil
}

// Search returns matching entries, newest first by default or in creation
// order with Filter.Ascending. Within one target the id ordering keeps
// creation order even when timestamps collide.
func (r *DBRecorder) Search(ctx context.Context, f Filter) ([]Entry, error) {
	query := `
		SELECT id, tenant_id, actor_id, actor_type, action,
		       target_type, target_id, target_name, changes, created_at
		FROM audit_entries WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.TenantID != nil {
		query += " AND tenant_id = " + arg(*f.TenantID)
	}
	if f.ActorID != nil {
		query += " AND actor_id = " + arg(*f.ActorID)
	}
	if len(f.Actions) > 0 {
		query += " AND action = ANY(" + arg(pq.Array(f.Actions)) + ")"
	}
	if len(f.TargetTypes) > 0 {
		query += " AND target_type = ANY(" + arg(pq.Array(f.TargetTypes)) + ")"
	}
	if f.TargetID != "" {
		query += " AND target_id = " + arg(f.TargetID)
	}
	if f.Since != nil {
		query += " AND created_at >= " + arg(*f.Since)
	}
	if f.Until != nil {
		query += " AND created_at < " + arg(*f.Until)
	}
	if f.Ascending {
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT " + arg(limit)
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errdefs.Internal(err, "search audit entries")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var tenantID, actorID sql.NullInt64
		var targetName sql.NullString
		var changes sql.NullString
		err := rows.Scan(
			&e.ID, &tenantID, &actorID, &e.ActorType, &e.Action,
			&e.TargetType, &e.TargetID, &targetName, &changes, &e.CreatedAt,
		)
		if err != nil {
			return nil, errdefs.Internal(err, "scan audit entry")
		}
		if tenantID.Valid {
			e.TenantID = &tenantID.Int64
		}
		if actorID.Valid {
			e.ActorID = &actorID.Int64
		}
		if targetName.Valid {
			e.TargetName = targetName.String
		}
		if changes.Valid && changes.String != "" {
			if err := json.Unmarshal([]byte(changes.String), &e.Changes); err != nil {
				return nil, errdefs.Internal(err, "decode audit changes")
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes entries created before the cutoff and reports how
// many were removed. Retention sweeps are the only sanctioned deletion path.
func (r *DBRecorder) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_entries WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, errdefs.Internal(err, "sweep audit entries")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errdefs.Internal(err, "sweep audit entries")
	}
	return n, nil
}
