package review

import (
	"time"
)

// CampaignStatus is the lifecycle state of a full review campaign. The
// lifecycle is linear: DRAFT → IN_REVIEW → SUBMITTED → COMPLETED.
type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusInReview  CampaignStatus = "in_review"
	StatusSubmitted CampaignStatus = "submitted"
	StatusCompleted CampaignStatus = "completed"
)

// Terminal reports whether no further mutation is legal.
func (s CampaignStatus) Terminal() bool {
	return s == StatusCompleted
}

// next returns the only legal successor status, or "" for terminal states.
func (s CampaignStatus) next() CampaignStatus {
	switch s {
	case StatusDraft:
		return StatusInReview
	case StatusInReview:
		return StatusSubmitted
	case StatusSubmitted:
		return StatusCompleted
	}
	return ""
}

// ReviewType categorizes what a campaign recertifies.
type ReviewType string

const (
	ReviewTypeUserAccess       ReviewType = "user_access"
	ReviewTypePrivilegedAccess ReviewType = "privileged_access"
	ReviewTypeRoleComposition  ReviewType = "role_composition"
)

// DecisionType is the reviewer's verdict on one item. Once rendered it may
// be revised to another terminal verdict but never back to pending.
type DecisionType string

const (
	DecisionPending DecisionType = "pending"
	DecisionKeep    DecisionType = "keep"
	DecisionRemove  DecisionType = "remove"
	DecisionChange  DecisionType = "change"
)

// Terminal reports whether the decision has been rendered.
func (d DecisionType) Terminal() bool {
	switch d {
	case DecisionKeep, DecisionRemove, DecisionChange:
		return true
	}
	return false
}

// PrivilegeLevel ranks an entitlement's sensitivity. The top two tiers
// mark an item privileged and force second-level approval on the campaign.
type PrivilegeLevel string

const (
	PrivilegeStandard   PrivilegeLevel = "standard"
	PrivilegeElevated   PrivilegeLevel = "elevated"
	PrivilegeAdmin      PrivilegeLevel = "admin"
	PrivilegeSuperAdmin PrivilegeLevel = "super_admin"
)

// Privileged reports whether the level sits in the top two tiers.
func (p PrivilegeLevel) Privileged() bool {
	return p == PrivilegeAdmin || p == PrivilegeSuperAdmin
}

// ItemDecision is the rendered verdict embedded in an item.
type ItemDecision struct {
	Type DecisionType `json:"type"`
	// ReasonCode optionally classifies the verdict (e.g. "job_change").
	ReasonCode string `json:"reason_code,omitempty"`
	// RequestedRoles carries the replacement role set for CHANGE verdicts.
	RequestedRoles []int64    `json:"requested_roles,omitempty"`
	ReviewerID     *int64     `json:"reviewer_id,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// Item is one entitlement under review, frozen at snapshot time.
type Item struct {
	ID             string         `json:"id"`
	Entitlement    string         `json:"entitlement"`
	RoleID         *int64         `json:"role_id,omitempty"`
	PrivilegeLevel PrivilegeLevel `json:"privilege_level"`
	Privileged     bool           `json:"privileged"`
	Decision       ItemDecision   `json:"decision"`
}

// Subject is one identity under review together with its snapshotted
// entitlement items.
type Subject struct {
	ID          string `json:"id"`
	PrincipalID int64  `json:"principal_id"`
	DisplayName string `json:"display_name"`
	Completed   bool   `json:"completed"`
	Items       []Item `json:"items"`
}

// Approvals tracks sign-off state. SecondLevelRequired is monotonic: once
// true it never clears.
type Approvals struct {
	SecondLevelRequired bool       `json:"second_level_required"`
	SecondLevelBy       *int64     `json:"second_level_by,omitempty"`
	SecondLevelAt       *time.Time `json:"second_level_at,omitempty"`
}

// Workflow tracks escalation and remediation bookkeeping.
type Workflow struct {
	EscalationEnabled bool       `json:"escalation_enabled"`
	EscalatedAt       *time.Time `json:"escalated_at,omitempty"`
	RemediationNotes  string     `json:"remediation_notes,omitempty"`
}

// Campaign is one recertification exercise over a frozen snapshot of
// subjects and their entitlements. Counters are derived; Recompute is the
// only writer.
type Campaign struct {
	ID          int64          `json:"id"`
	TenantID    int64          `json:"tenant_id"`
	Name        string         `json:"name"`
	SystemName  string         `json:"system_name"`
	Status      CampaignStatus `json:"status"`
	ReviewType  ReviewType     `json:"review_type"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	DueDate     time.Time      `json:"due_date"`

	Approvals Approvals `json:"approvals"`
	Workflow  Workflow  `json:"workflow"`

	TotalSubjects     int `json:"total_subjects"`
	CompletedSubjects int `json:"completed_subjects"`
	TotalItems        int `json:"total_items"`
	CompletedItems    int `json:"completed_items"`

	Subjects []Subject `json:"subjects"`

	ClosedBy  *int64     `json:"closed_by,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedBy *int64     `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// AdHocStatus is the lifecycle of a lightweight one-shot review.
type AdHocStatus string

const (
	AdHocOpen   AdHocStatus = "open"
	AdHocClosed AdHocStatus = "closed"
)

// AdHocReview is the lightweight OPEN → CLOSED review variant used outside
// the full campaign lifecycle. It has no completion precondition at all.
type AdHocReview struct {
	ID        int64       `json:"id"`
	TenantID  int64       `json:"tenant_id"`
	Name      string      `json:"name"`
	Status    AdHocStatus `json:"status"`
	Notes     string      `json:"notes,omitempty"`
	ClosedBy  *int64      `json:"closed_by,omitempty"`
	ClosedAt  *time.Time  `json:"closed_at,omitempty"`
	CreatedBy *int64      `json:"created_by,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Definition carries the caller-provided campaign parameters.
type Definition struct {
	TenantID    int64
	Name        string
	SystemName  string
	ReviewType  ReviewType
	PeriodStart time.Time
	PeriodEnd   time.Time
	DueDate     time.Time
	Escalation  bool
	CreatedBy   *int64
}

// SubjectSnapshot is one identity's current entitlements as observed at
// campaign creation time.
type SubjectSnapshot struct {
	PrincipalID  int64
	DisplayName  string
	Entitlements []EntitlementSnapshot
}

// EntitlementSnapshot is one entitlement as observed at campaign creation
// time.
type EntitlementSnapshot struct {
	Name           string
	RoleID         *int64
	PrivilegeLevel PrivilegeLevel
}
