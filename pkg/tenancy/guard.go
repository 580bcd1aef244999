package tenancy

import (
	"context"
	"fmt"

	"github.com/tenantguard/iamcore/pkg/catalog"
	"github.com/tenantguard/iamcore/pkg/errdefs"
	"github.com/tenantguard/iamcore/pkg/rbac"
)

// AssignmentReader is the ledger view the guard needs: whether an advisor
// currently holds an active assignment to a tenant.
type AssignmentReader interface {
	HasActiveAssignment(ctx context.Context, advisorID, tenantID int64) (bool, error)
}

// Guard enforces tenant boundary isolation for access decisions.
type Guard struct {
	assignments AssignmentReader
}

// NewGuard creates a guard backed by the given assignment reader.
func NewGuard(assignments AssignmentReader) *Guard {
	return &Guard{assignments: assignments}
}

// CheckTenantAccess decides whether a principal may act on a resource in
// the given tenant. Platform-tier principals always may; advisor-tier
// principals need an active assignment to the resource tenant; everyone
// else is confined to their home tenant. Denials are tenant-access
// violations, which surface externally with the same code as a missing
// resource.
func (g *Guard) CheckTenantAccess(ctx context.Context, principal *rbac.Principal, resourceTenantID int64) error {
	if principal == nil {
		return errdefs.TenantAccessDenied("no principal")
	}
	if principal.Tier.IsPlatform() {
		return nil
	}

	if principal.Tier == catalog.TierAdvisor {
		ok, err := g.assignments.HasActiveAssignment(ctx, principal.ID, resourceTenantID)
		if err != nil {
			return fmt.Errorf("failed to check advisor assignment: %w", err)
		}
		if !ok {
			return errdefs.TenantAccessDenied("advisor %d has no active assignment to tenant %d", principal.ID, resourceTenantID)
		}
		return nil
	}

	if principal.TenantID == nil || *principal.TenantID != resourceTenantID {
		return errdefs.TenantAccessDenied("principal %d may not act in tenant %d", principal.ID, resourceTenantID)
	}
	return nil
}
