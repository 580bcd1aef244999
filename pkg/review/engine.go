package review

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tenantguard/iamcore/pkg/errdefs"
)

// NewCampaign freezes the given subject snapshots into a DRAFT campaign.
// Subject and item identifiers are minted here and stay stable for the life
// of the campaign.
func NewCampaign(def Definition, snapshots []SubjectSnapshot, now time.Time) (*Campaign, error) {
	if def.TenantID <= 0 {
		return nil, errdefs.Validation("campaign requires a tenant")
	}
	if def.Name == "" {
		return nil, errdefs.Validation("campaign requires a name")
	}
	switch def.ReviewType {
	case ReviewTypeUserAccess, ReviewTypePrivilegedAccess, ReviewTypeRoleComposition:
	default:
		return nil, errdefs.Validation("unknown review type %q", def.ReviewType)
	}
	if def.PeriodEnd.Before(def.PeriodStart) {
		return nil, errdefs.Validation("review period ends before it starts")
	}

	c := &Campaign{
		TenantID:    def.TenantID,
		Name:        def.Name,
		SystemName:  def.SystemName,
		Status:      StatusDraft,
		ReviewType:  def.ReviewType,
		PeriodStart: def.PeriodStart,
		PeriodEnd:   def.PeriodEnd,
		DueDate:     def.DueDate,
		Workflow:    Workflow{EscalationEnabled: def.Escalation},
		CreatedBy:   def.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, snap := range snapshots {
		subject := Subject{
			ID:          uuid.NewString(),
			PrincipalID: snap.PrincipalID,
			DisplayName: snap.DisplayName,
		}
		for _, ent := range snap.Entitlements {
			subject.Items = append(subject.Items, Item{
				ID:             uuid.NewString(),
				Entitlement:    ent.Name,
				RoleID:         ent.RoleID,
				PrivilegeLevel: ent.PrivilegeLevel,
				Privileged:     ent.PrivilegeLevel.Privileged(),
				Decision:       ItemDecision{Type: DecisionPending},
			})
		}
		c.Subjects = append(c.Subjects, subject)
	}
	Recompute(c)
	return c, nil
}

// Recompute derives every counter, subject completion flag, and the
// second-level approval requirement from the items by full re-scan. It is
// the single writer for all derived state, so callers never patch counters
// incrementally.
func Recompute(c *Campaign) {
	c.TotalSubjects = len(c.Subjects)
	c.CompletedSubjects = 0
	c.TotalItems = 0
	c.CompletedItems = 0

	anyPrivileged := false
	for i := range c.Subjects {
		s := &c.Subjects[i]
		done := true
		for _, item := range s.Items {
			c.TotalItems++
			if item.Decision.Type.Terminal() {
				c.CompletedItems++
			} else {
				done = false
			}
			if item.Privileged {
				anyPrivileged = true
			}
		}
		// A subject with no items has nothing pending and counts as
		// complete, matching the store's SQL recompute.
		s.Completed = done
		if s.Completed {
			c.CompletedSubjects++
		}
	}
	if anyPrivileged {
		c.Approvals.SecondLevelRequired = true
	}
}

// CompletionPercentage returns 0-100, rounded to the nearest whole percent.
// Campaigns with no items report 0.
func (c *Campaign) CompletionPercentage() int {
	if c.TotalItems == 0 {
		return 0
	}
	return (c.CompletedItems*100 + c.TotalItems/2) / c.TotalItems
}

// FindItem locates an item and its owning subject by item id.
func (c *Campaign) FindItem(itemID string) (*Subject, *Item, bool) {
	for i := range c.Subjects {
		for j := range c.Subjects[i].Items {
			if c.Subjects[i].Items[j].ID == itemID {
				return &c.Subjects[i], &c.Subjects[i].Items[j], true
			}
		}
	}
	return nil, nil, false
}

// RecordDecision applies a reviewer verdict to one item and re-derives the
// campaign's counters. A terminal verdict may later be revised to another
// terminal verdict, but never reverted to pending, and nothing changes once
// the campaign itself is terminal.
func (c *Campaign) RecordDecision(itemID string, reviewerID int64, d ItemDecision, now time.Time) error {
	if c.Status.Terminal() {
		return errdefs.Conflict("campaign %d is closed", c.ID)
	}
	if !d.Type.Terminal() {
		return errdefs.Validation("decision cannot revert an item to pending")
	}
	if d.Type == DecisionChange && len(d.RequestedRoles) == 0 {
		return errdefs.Validation("change decision requires replacement roles")
	}
	_, item, ok := c.FindItem(itemID)
	if !ok {
		return errdefs.NotFound("review item %s", itemID)
	}

	d.ReviewerID = &reviewerID
	t := now
	d.DecidedAt = &t
	item.Decision = d

	if c.Status == StatusDraft {
		c.Status = StatusInReview
	}
	Recompute(c)
	c.UpdatedAt = now
	return nil
}

// Advance moves the campaign one step along its linear lifecycle. Skipping
// states is never legal.
func (c *Campaign) Advance(to CampaignStatus, now time.Time) error {
	if c.Status.Terminal() {
		return errdefs.Conflict("campaign %d is closed", c.ID)
	}
	if c.Status.next() != to {
		return errdefs.Validation("cannot move campaign from %s to %s", c.Status, to)
	}
	c.Status = to
	c.UpdatedAt = now
	return nil
}

// Close finalizes the campaign. Closing with pending items is legal: the
// deadline governs, and the export shows what was left undecided. Only an
// already-terminal campaign refuses.
func (c *Campaign) Close(closedBy int64, now time.Time) error {
	if c.Status.Terminal() {
		return errdefs.Conflict("campaign %d is already closed", c.ID)
	}
	c.Status = StatusCompleted
	c.ClosedBy = &closedBy
	t := now
	c.ClosedAt = &t
	c.UpdatedAt = now
	return nil
}

// Close finalizes an ad hoc review. There is no completion precondition.
func (r *AdHocReview) Close(closedBy int64, now time.Time) error {
	if r.Status == AdHocClosed {
		return errdefs.Conflict("review %d is already closed", r.ID)
	}
	r.Status = AdHocClosed
	r.ClosedBy = &closedBy
	t := now
	r.ClosedAt = &t
	return nil
}

// EffectsStore is the slice of the assignment store that decision effects
// need.
type EffectsStore interface {
	ReplaceAssignments(ctx context.Context, principalID int64, roleIDs []int64, grantedBy *int64) error
	ClearMemberships(ctx context.Context, principalID int64) error
}

// ApplyDecisionEffects enacts a rendered verdict against live assignments.
// KEEP touches nothing. REMOVE strips every direct role and group
// membership. CHANGE replaces the direct role set with the requested one.
func ApplyDecisionEffects(ctx context.Context, store EffectsStore, subject *Subject, d ItemDecision, actorID int64) error {
	switch d.Type {
	case DecisionKeep:
		return nil
	case DecisionRemove:
		if err := store.ClearMemberships(ctx, subject.PrincipalID); err != nil {
			return err
		}
		return store.ReplaceAssignments(ctx, subject.PrincipalID, nil, &actorID)
	case DecisionChange:
		return store.ReplaceAssignments(ctx, subject.PrincipalID, d.RequestedRoles, &actorID)
	case DecisionPending:
		return errdefs.Validation("pending decision has no effects")
	}
	return errdefs.Validation("unknown decision type %q", d.Type)
}
