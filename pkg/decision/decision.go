package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/tenantguard/iamcore/pkg/catalog"
	"github.com/tenantguard/iamcore/pkg/errdefs"
	"github.com/tenantguard/iamcore/pkg/rbac"
)

// Mode selects how required permissions combine.
type Mode int

const (
	// ModeAll requires every listed permission.
	ModeAll Mode = iota
	// ModeAny requires at least one listed permission.
	ModeAny
)

func (m Mode) String() string {
	if m == ModeAny {
		return "any"
	}
	return "all"
}

// Check is one access decision request.
type Check struct {
	Principal *rbac.Principal
	Required  []catalog.Permission
	Mode      Mode
	// TenantContext is the tenant resolved for the operation.
	TenantContext int64
	// ResourceTenantID is the owning tenant of the target resource. Zero
	// falls back to TenantContext.
	ResourceTenantID int64
}

// Result is the outcome of a decision.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	Code      string    `json:"code,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// PermissionSource resolves a principal's effective permission set.
type PermissionSource interface {
	EffectivePermissionsFor(ctx context.Context, principal *rbac.Principal) (rbac.PermissionSet, error)
}

// TenantChecker enforces tenant boundary isolation.
type TenantChecker interface {
	CheckTenantAccess(ctx context.Context, principal *rbac.Principal, resourceTenantID int64) error
}

// Decider is the single authorization gate. No caller performs its own
// ad hoc permission or tenant logic.
type Decider struct {
	perms PermissionSource
	guard TenantChecker
}

// NewDecider creates a decider from a permission source and tenant guard.
func NewDecider(perms PermissionSource, guard TenantChecker) *Decider {
	return &Decider{perms: perms, guard: guard}
}

// Decide evaluates a check: permissions first, then the tenant boundary.
// Denials come back as a Result with Allowed=false and a typed code; the
// error return is reserved for internal failures.
func (d *Decider) Decide(ctx context.Context, check Check) (*Result, error) {
	result := &Result{CheckedAt: time.Now()}

	if check.Principal == nil {
		return deny(result, errdefs.PermissionDenied("no principal")), nil
	}
	if len(check.Required) == 0 {
		return deny(result, errdefs.Validation("no required permissions given")), nil
	}

	set, err := d.perms.EffectivePermissionsFor(ctx, check.Principal)
	if err != nil {
		observeDecision("error")
		return nil, fmt.Errorf("failed to resolve permissions: %w", err)
	}

	var satisfied bool
	if check.Mode == ModeAny {
		satisfied = set.HasAny(check.Required)
	} else {
		satisfied = set.HasAll(check.Required)
	}
	if !satisfied {
		return deny(result, errdefs.PermissionDenied(
			"principal %d lacks required permissions (%s mode)", check.Principal.ID, check.Mode)), nil
	}

	resourceTenant := check.ResourceTenantID
	if resourceTenant == 0 {
		resourceTenant = check.TenantContext
	}
	if resourceTenant != 0 {
		if err := d.guard.CheckTenantAccess(ctx, check.Principal, resourceTenant); err != nil {
			if errdefs.IsTenantAccessDenied(err) {
				return deny(result, err), nil
			}
			observeDecision("error")
			return nil, fmt.Errorf("tenant check failed: %w", err)
		}
	}

	result.Allowed = true
	observeDecision("allow")
	return result, nil
}

func deny(result *Result, cause error) *Result {
	result.Allowed = false
	result.Reason = cause.Error()
	result.Code = errdefs.ExternalCode(cause)
	observeDecision("deny")
	return result
}
