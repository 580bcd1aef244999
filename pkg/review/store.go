package review

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/tenantguard/iamcore/pkg/errdefs"
)

// Store persists campaigns and ad hoc reviews in Postgres. Counter columns
// are re-derived inside the same transaction as every decision write, so a
// reader never sees counters that disagree with the item rows.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var reviewSchema = []string{
	`CREATE TABLE IF NOT EXISTS review_campaigns (
		id BIGSERIAL PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL,
		system_name VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL DEFAULT 'draft',
		review_type VARCHAR(32) NOT NULL,
		period_start TIMESTAMP NOT NULL,
		period_end TIMESTAMP NOT NULL,
		due_date TIMESTAMP NOT NULL,
		second_level_required BOOLEAN NOT NULL DEFAULT FALSE,
		second_level_by BIGINT,
		second_level_at TIMESTAMP,
		escalation_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		escalated_at TIMESTAMP,
		remediation_notes TEXT NOT NULL DEFAULT '',
		total_subjects INTEGER NOT NULL DEFAULT 0,
		completed_subjects INTEGER NOT NULL DEFAULT 0,
		total_items INTEGER NOT NULL DEFAULT 0,
		completed_items INTEGER NOT NULL DEFAULT 0,
		closed_by BIGINT,
		closed_at TIMESTAMP,
		created_by BIGINT,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_review_campaigns_tenant ON review_campaigns(tenant_id)`,
	`CREATE TABLE IF NOT EXISTS review_subjects (
		id VARCHAR(64) PRIMARY KEY,
		campaign_id BIGINT NOT NULL REFERENCES review_campaigns(id) ON DELETE CASCADE,
		principal_id BIGINT NOT NULL,
		display_name VARCHAR(255) NOT NULL DEFAULT '',
		completed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_review_subjects_campaign ON review_subjects(campaign_id)`,
	`CREATE TABLE IF NOT EXISTS review_items (
		id VARCHAR(64) PRIMARY KEY,
		subject_id VARCHAR(64) NOT NULL REFERENCES review_subjects(id) ON DELETE CASCADE,
		campaign_id BIGINT NOT NULL REFERENCES review_campaigns(id) ON DELETE CASCADE,
		entitlement VARCHAR(255) NOT NULL,
		role_id BIGINT,
		privilege_level VARCHAR(32) NOT NULL DEFAULT 'standard',
		privileged BOOLEAN NOT NULL DEFAULT FALSE,
		decision_type VARCHAR(16) NOT NULL DEFAULT 'pending',
		reason_code VARCHAR(64) NOT NULL DEFAULT '',
		requested_roles BIGINT[],
		reviewer_id BIGINT,
		decided_at TIMESTAMP,
		notes TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_review_items_campaign ON review_items(campaign_id)`,
	`CREATE TABLE IF NOT EXISTS adhoc_reviews (
		id BIGSERIAL PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'open',
		notes TEXT NOT NULL DEFAULT '',
		closed_by BIGINT,
		closed_at TIMESTAMP,
		created_by BIGINT,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range reviewSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errdefs.Internal(err, "apply review schema")
		}
	}
	return nil
}

// CreateCampaign persists a freshly snapshotted campaign and stamps its
// generated id back onto the aggregate.
func (s *Store) CreateCampaign(ctx context.Context, c *Campaign) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errdefs.Internal(err, "begin create campaign")
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO review_campaigns (
			tenant_id, name, system_name, status, review_type,
			period_start, period_end, due_date,
			second_level_required, escalation_enabled,
			total_subjects, completed_subjects, total_items, completed_items,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		c.TenantID, c.Name, c.SystemName, c.Status, c.ReviewType,
		c.PeriodStart, c.PeriodEnd, c.DueDate,
		c.Approvals.SecondLevelRequired, c.Workflow.EscalationEnabled,
		c.TotalSubjects, c.CompletedSubjects, c.TotalItems, c.CompletedItems,
		c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return errdefs.Internal(err, "insert campaign")
	}

	for si := range c.Subjects {
		subject := &c.Subjects[si]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO review_subjects (id, campaign_id, principal_id, display_name, completed)
			VALUES ($1, $2, $3, $4, $5)`,
			subject.ID, c.ID, subject.PrincipalID, subject.DisplayName, subject.Completed,
		)
		if err != nil {
			return errdefs.Internal(err, "insert review subject")
		}
		for _, item := range subject.Items {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO review_items (
					id, subject_id, campaign_id, entitlement, role_id,
					privilege_level, privileged, decision_type
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				item.ID, subject.ID, c.ID, item.Entitlement, item.RoleID,
				item.PrivilegeLevel, item.Privileged, item.Decision.Type,
			)
			if err != nil {
				return errdefs.Internal(err, "insert review item")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errdefs.Internal(err, "commit create campaign")
	}
	return nil
}

// GetCampaign loads the full aggregate including subjects and items.
func (s *Store) GetCampaign(ctx context.Context, id int64) (*Campaign, error) {
	c := &Campaign{}
	var closedBy, createdBy, secondBy sql.NullInt64
	var closedAt, secondAt, escalatedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, system_name, status, review_type,
		       period_start, period_end, due_date,
		       second_level_required, second_level_by, second_level_at,
		       escalation_enabled, escalated_at, remediation_notes,
		       total_subjects, completed_subjects, total_items, completed_items,
		       closed_by, closed_at, created_by, created_at, updated_at
		FROM review_campaigns WHERE id = $1`, id,
	).Scan(
		&c.ID, &c.TenantID, &c.Name, &c.SystemName, &c.Status, &c.ReviewType,
		&c.PeriodStart, &c.PeriodEnd, &c.DueDate,
		&c.Approvals.SecondLevelRequired, &secondBy, &secondAt,
		&c.Workflow.EscalationEnabled, &escalatedAt, &c.Workflow.RemediationNotes,
		&c.TotalSubjects, &c.CompletedSubjects, &c.TotalItems, &c.CompletedItems,
		&closedBy, &closedAt, &createdBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errdefs.NotFound("campaign %d", id)
	}
	if err != nil {
		return nil, errdefs.Internal(err, "load campaign")
	}
	if secondBy.Valid {
		c.Approvals.SecondLevelBy = &secondBy.Int64
	}
	if secondAt.Valid {
		c.Approvals.SecondLevelAt = &secondAt.Time
	}
	if escalatedAt.Valid {
		c.Workflow.EscalatedAt = &escalatedAt.Time
	}
	if closedBy.Valid {
		c.ClosedBy = &closedBy.Int64
	}
	if closedAt.Valid {
		c.ClosedAt = &closedAt.Time
	}
	if createdBy.Valid {
		c.CreatedBy = &createdBy.Int64
	}

	if err := s.loadSubjects(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) loadSubjects(ctx context.Context, c *Campaign) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, principal_id, display_name, completed
		FROM review_subjects WHERE campaign_id = $1 ORDER BY display_name, id`, c.ID)
	if err != nil {
		return errdefs.Internal(err, "load review subjects")
	}
	defer rows.Close()

	index := map[string]int{}
	for rows.Next() {
		var subject Subject
		if err := rows.Scan(&subject.ID, &subject.PrincipalID, &subject.DisplayName, &subject.Completed); err != nil {
			return errdefs.Internal(err, "scan review subject")
		}
		index[subject.ID] = len(c.Subjects)
		c.Subjects = append(c.Subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return errdefs.Internal(err, "iterate review subjects")
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, entitlement, role_id, privilege_level, privileged,
		       decision_type, reason_code, requested_roles, reviewer_id, decided_at, notes
		FROM review_items WHERE campaign_id = $1 ORDER BY entitlement, id`, c.ID)
	if err != nil {
		return errdefs.Internal(err, "load review items")
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item Item
		var subjectID string
		var roleID, reviewerID sql.NullInt64
		var decidedAt sql.NullTime
		var requested pq.Int64Array
		err := itemRows.Scan(
			&item.ID, &subjectID, &item.Entitlement, &roleID,
			&item.PrivilegeLevel, &item.Privileged,
			&item.Decision.Type, &item.Decision.ReasonCode, &requested,
			&reviewerID, &decidedAt, &item.Decision.Notes,
		)
		if err != nil {
			return errdefs.Internal(err, "scan review item")
		}
		if roleID.Valid {
			item.RoleID = &roleID.Int64
		}
		if len(requested) > 0 {
			item.Decision.RequestedRoles = []int64(requested)
		}
		if reviewerID.Valid {
			item.Decision.ReviewerID = &reviewerID.Int64
		}
		if decidedAt.Valid {
			item.Decision.DecidedAt = &decidedAt.Time
		}
		if idx, ok := index[subjectID]; ok {
			c.Subjects[idx].Items = append(c.Subjects[idx].Items, item)
		}
	}
	return itemRows.Err()
}

// ListCampaigns returns campaign headers for one tenant, newest first.
// Subjects and items are not loaded.
func (s *Store) ListCampaigns(ctx context.Context, tenantID int64) ([]Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, system_name, status, review_type,
		       period_start, period_end, due_date, second_level_required,
		       total_subjects, completed_subjects, total_items, completed_items,
		       created_at, updated_at
		FROM review_campaigns WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC`, tenantID)
	if err != nil {
		return nil, errdefs.Internal(err, "list campaigns")
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		var c Campaign
		err := rows.Scan(
			&c.ID, &c.TenantID, &c.Name, &c.SystemName, &c.Status, &c.ReviewType,
			&c.PeriodStart, &c.PeriodEnd, &c.DueDate, &c.Approvals.SecondLevelRequired,
			&c.TotalSubjects, &c.CompletedSubjects, &c.TotalItems, &c.CompletedItems,
			&c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, errdefs.Internal(err, "scan campaign")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordDecision writes one verdict and re-derives subject completion and
// campaign counters in the same transaction. The campaign row is locked
// first so concurrent decisions serialize.
func (s *Store) RecordDecision(ctx context.Context, campaignID int64, itemID string, reviewerID int64, d ItemDecision, now time.Time) error {
	if !d.Type.Terminal() {
		return errdefs.Validation("decision cannot revert an item to pending")
	}
	if d.Type == DecisionChange && len(d.RequestedRoles) == 0 {
		return errdefs.Validation("change decision requires replacement roles")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errdefs.Internal(err, "begin record decision")
	}
	defer tx.Rollback()

	var status CampaignStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM review_campaigns WHERE id = $1 FOR UPDATE`, campaignID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return errdefs.NotFound("campaign %d", campaignID)
	}
	if err != nil {
		return errdefs.Internal(err, "lock campaign")
	}
	if status.Terminal() {
		return errdefs.Conflict("campaign %d is closed", campaignID)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE review_items
		SET decision_type = $1, reason_code = $2, requested_roles = $3,
		    reviewer_id = $4, decided_at = $5, notes = $6
		WHERE id = $7 AND campaign_id = $8`,
		d.Type, d.ReasonCode, pq.Array(d.RequestedRoles),
		reviewerID, now, d.Notes, itemID, campaignID,
	)
	if err != nil {
		return errdefs.Internal(err, "update review item")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errdefs.Internal(err, "update review item")
	}
	if n == 0 {
		return errdefs.NotFound("review item %s", itemID)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE review_subjects s
		SET completed = NOT EXISTS (
			SELECT 1 FROM review_items i
			WHERE i.subject_id = s.id AND i.decision_type = 'pending'
		)
		WHERE s.campaign_id = $1`, campaignID)
	if err != nil {
		return errdefs.Internal(err, "recompute subject completion")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE review_campaigns c
		SET total_subjects = agg.total_subjects,
		    completed_subjects = agg.completed_subjects,
		    total_items = agg.total_items,
		    completed_items = agg.completed_items,
		    second_level_required = c.second_level_required OR agg.any_privileged,
		    status = CASE WHEN c.status = 'draft' THEN 'in_review' ELSE c.status END,
		    updated_at = $2
		FROM (
			SELECT COUNT(DISTINCT s.id) AS total_subjects,
			       COUNT(DISTINCT s.id) FILTER (WHERE s.completed) AS completed_subjects,
			       COUNT(i.id) AS total_items,
			       COUNT(i.id) FILTER (WHERE i.decision_type <> 'pending') AS completed_items,
			       COALESCE(BOOL_OR(i.privileged), FALSE) AS any_privileged
			FROM review_subjects s
			LEFT JOIN review_items i ON i.subject_id = s.id
			WHERE s.campaign_id = $1
		) agg
		WHERE c.id = $1`, campaignID, now)
	if err != nil {
		return errdefs.Internal(err, "recompute campaign counters")
	}

	if err := tx.Commit(); err != nil {
		return errdefs.Internal(err, "commit record decision")
	}
	return nil
}

// AdvanceCampaign moves a campaign one step along its lifecycle. The
// current status is part of the update predicate, so a concurrent advance
// loses cleanly.
func (s *Store) AdvanceCampaign(ctx context.Context, id int64, to CampaignStatus, now time.Time) error {
	var status CampaignStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM review_campaigns WHERE id = $1`, id,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return errdefs.NotFound("campaign %d", id)
	}
	if err != nil {
		return errdefs.Internal(err, "load campaign status")
	}
	if status.Terminal() {
		return errdefs.Conflict("campaign %d is closed", id)
	}
	if status.next() != to {
		return errdefs.Validation("cannot move campaign from %s to %s", status, to)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE review_campaigns SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`, to, now, id, status)
	if err != nil {
		return errdefs.Internal(err, "advance campaign")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errdefs.Internal(err, "advance campaign")
	}
	if n == 0 {
		return errdefs.Conflict("campaign %d changed concurrently", id)
	}
	return nil
}

// CloseCampaign finalizes a campaign regardless of pending items. Closing
// an already-terminal campaign is a conflict.
func (s *Store) CloseCampaign(ctx context.Context, id, closedBy int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE review_campaigns
		SET status = 'completed', closed_by = $1, closed_at = $2, updated_at = $2
		WHERE id = $3 AND status <> 'completed'`, closedBy, now, id)
	if err != nil {
		return errdefs.Internal(err, "close campaign")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errdefs.Internal(err, "close campaign")
	}
	if n == 0 {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM review_campaigns WHERE id = $1)`, id,
		).Scan(&exists)
		if err != nil {
			return errdefs.Internal(err, "close campaign")
		}
		if exists {
			return errdefs.Conflict("campaign %d is already closed", id)
		}
		return errdefs.NotFound("campaign %d", id)
	}
	return nil
}

// CreateAdHoc opens a lightweight review.
func (s *Store) CreateAdHoc(ctx context.Context, r *AdHocReview) error {
	if r.TenantID <= 0 {
		return errdefs.Validation("ad hoc review requires a tenant")
	}
	if r.Name == "" {
		return errdefs.Validation("ad hoc review requires a name")
	}
	r.Status = AdHocOpen
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO adhoc_reviews (tenant_id, name, status, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		r.TenantID, r.Name, r.Status, r.Notes, r.CreatedBy, r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return errdefs.Internal(err, "insert ad hoc review")
	}
	return nil
}

func (s *Store) GetAdHoc(ctx context.Context, id int64) (*AdHocReview, error) {
	r := &AdHocReview{}
	var closedBy, createdBy sql.NullInt64
	var closedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, status, notes, closed_by, closed_at, created_by, created_at
		FROM adhoc_reviews WHERE id = $1`, id,
	).Scan(&r.ID, &r.TenantID, &r.Name, &r.Status, &r.Notes, &closedBy, &closedAt, &createdBy, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errdefs.NotFound("ad hoc review %d", id)
	}
	if err != nil {
		return nil, errdefs.Internal(err, "load ad hoc review")
	}
	if closedBy.Valid {
		r.ClosedBy = &closedBy.Int64
	}
	if closedAt.Valid {
		r.ClosedAt = &closedAt.Time
	}
	if createdBy.Valid {
		r.CreatedBy = &createdBy.Int64
	}
	return r, nil
}

// CloseAdHoc closes a lightweight review. There is no completion
// precondition; only double closure refuses.
func (s *Store) CloseAdHoc(ctx context.Context, id, closedBy int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE adhoc_reviews SET status = 'closed', closed_by = $1, closed_at = $2
		WHERE id = $3 AND status = 'open'`, closedBy, now, id)
	if err != nil {
		return errdefs.Internal(err, "close ad hoc review")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errdefs.Internal(err, "close ad hoc review")
	}
	if n == 0 {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM adhoc_reviews WHERE id = $1)`, id,
		).Scan(&exists)
		if err != nil {
			return errdefs.Internal(err, "close ad hoc review")
		}
		if exists {
			return errdefs.Conflict("ad hoc review %d is already closed", id)
		}
		return errdefs.NotFound("ad hoc review %d", id)
	}
	return nil
}
