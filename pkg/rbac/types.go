package rbac

import (
	"time"

	"github.com/tenantguard/iamcore/pkg/catalog"
)

// Principal represents a user or service identity that can hold
// permissions. Platform-tier principals have no home tenant.
type Principal struct {
	ID        int64        `json:"id"`
	Username  string       `json:"username"`
	TenantID  *int64       `json:"tenant_id,omitempty"`
	Tier      catalog.Tier `json:"tier"`
	IsService bool         `json:"is_service"`
	Active    bool         `json:"active"`
	Locked    bool         `json:"locked"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Role is a named set of permission keys, either global (TenantID nil) or
// bound to one tenant. System roles are seeded once and cannot be deleted
// or permission-edited by non-platform actors.
type Role struct {
	ID          int64                `json:"id"`
	Name        string               `json:"name"`
	DisplayName string               `json:"display_name"`
	Description string               `json:"description"`
	TenantID    *int64               `json:"tenant_id,omitempty"`
	Permissions []catalog.Permission `json:"permissions"`
	IsSystem    bool                 `json:"is_system"`
	Active      bool                 `json:"active"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	CreatedBy   *int64               `json:"created_by,omitempty"`
}

// Group is a named collection of principals carrying a set of roles,
// scoped to a tenant or platform-wide.
type Group struct {
	ID          int64     `json:"id"`
	TenantID    *int64    `json:"tenant_id,omitempty"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
}

// GroupMember represents a principal's membership in a group
type GroupMember struct {
	ID          int64     `json:"id"`
	GroupID     int64     `json:"group_id"`
	PrincipalID int64     `json:"principal_id"`
	AddedAt     time.Time `json:"added_at"`
	AddedBy     *int64    `json:"added_by,omitempty"`
}

// RoleAssignment represents a role directly assigned to a principal
type RoleAssignment struct {
	ID          int64     `json:"id"`
	PrincipalID int64     `json:"principal_id"`
	RoleID      int64     `json:"role_id"`
	GrantedBy   *int64    `json:"granted_by,omitempty"`
	GrantedAt   time.Time `json:"granted_at"`
}

// GroupRoles pairs a group with the roles attached to it, as loaded for
// permission resolution.
type GroupRoles struct {
	Group Group
	Roles []Role
}

// System role names
const (
	RoleTenantAuditor   = "tenant:auditor"
	RoleTenantOperator  = "tenant:operator"
	RoleCampaignManager = "campaign:manager"
)

// SystemRoles returns the role definitions seeded at installation time.
// They are global in scope and immutable for non-platform actors.
func SystemRoles() []Role {
	return []Role{
		{
			Name:        RoleTenantAuditor,
			DisplayName: "Tenant Auditor",
			Description: "Read-only access to audit history and reports",
			IsSystem:    true,
			Active:      true,
			Permissions: []catalog.Permission{
				{Resource: catalog.ResourceAudit, Action: catalog.ActionRead},
				{Resource: catalog.ResourceAudit, Action: catalog.ActionExport},
				{Resource: catalog.ResourceReport, Action: catalog.ActionRead},
			},
		},
		{
			Name:        RoleTenantOperator,
			DisplayName: "Tenant Operator",
			Description: "Day-to-day user and group administration",
			IsSystem:    true,
			Active:      true,
			Permissions: []catalog.Permission{
				{Resource: catalog.ResourcePrincipal, Action: catalog.ActionCreate},
				{Resource: catalog.ResourcePrincipal, Action: catalog.ActionRead},
				{Resource: catalog.ResourcePrincipal, Action: catalog.ActionUpdate},
				{Resource: catalog.ResourceGroup, Action: catalog.ActionRead},
				{Resource: catalog.ResourceGroup, Action: catalog.ActionUpdate},
				{Resource: catalog.ResourceRole, Action: catalog.ActionAssign},
				{Resource: catalog.ResourceRole, Action: catalog.ActionRevoke},
			},
		},
		{
			Name:        RoleCampaignManager,
			DisplayName: "Campaign Manager",
			Description: "Full control over access review campaigns",
			IsSystem:    true,
			Active:      true,
			Permissions: []catalog.Permission{
				{Resource: catalog.ResourceCampaign, Action: catalog.ActionCreate},
				{Resource: catalog.ResourceCampaign, Action: catalog.ActionRead},
				{Resource: catalog.ResourceCampaign, Action: catalog.ActionDecide},
				{Resource: catalog.ResourceCampaign, Action: catalog.ActionClose},
				{Resource: catalog.ResourceCampaign, Action: catalog.ActionExport},
			},
		},
	}
}
