package catalog

import (
	"fmt"
	"strings"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceTenant     Resource = "tenant"
	ResourcePrincipal  Resource = "principal"
	ResourceRole       Resource = "role"
	ResourceGroup      Resource = "group"
	ResourceAssignment Resource = "assignment"
	ResourceCampaign   Resource = "campaign"
	ResourceAudit      Resource = "audit"
	ResourceReport     Resource = "report"
	ResourceSettings   Resource = "settings"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionAssign Action = "assign"
	ActionRevoke Action = "revoke"
	ActionDecide Action = "decide"
	ActionClose  Action = "close"
	ActionExport Action = "export"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns the canonical key form of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Valid reports whether the permission exists in the catalog
func (p Permission) Valid() bool {
	_, ok := labels[p]
	return ok
}

// Parse parses a "resource:action" key into a Permission.
// Keys outside the catalog are rejected.
func Parse(key string) (Permission, error) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return Permission{}, fmt.Errorf("malformed permission key: %q", key)
	}
	p := Permission{Resource: Resource(parts[0]), Action: Action(parts[1])}
	if !p.Valid() {
		return Permission{}, fmt.Errorf("unknown permission key: %q", key)
	}
	return p, nil
}

// Tier represents the coarse role tier of a principal
type Tier string

const (
	TierPlatformAdmin Tier = "platform_admin"
	TierTenantManager Tier = "tenant_manager"
	TierAdvisor       Tier = "advisor"
	TierCustomer      Tier = "customer"
)

// Valid reports whether the tier is one of the four known tiers
func (t Tier) Valid() bool {
	switch t {
	case TierPlatformAdmin, TierTenantManager, TierAdvisor, TierCustomer:
		return true
	}
	return false
}

// IsPlatform reports whether the tier may cross tenant boundaries
// unconditionally
func (t Tier) IsPlatform() bool {
	return t == TierPlatformAdmin
}

// labels maps every catalog permission to its human label. The map doubles
// as the closed set of valid permission keys.
var labels = map[Permission]string{
	{ResourceTenant, ActionCreate}:     "Create tenants",
	{ResourceTenant, ActionRead}:       "View tenant details",
	{ResourceTenant, ActionUpdate}:     "Update tenant settings",
	{ResourceTenant, ActionDelete}:     "Deactivate tenants",
	{ResourcePrincipal, ActionCreate}:  "Create users and service identities",
	{ResourcePrincipal, ActionRead}:    "View users",
	{ResourcePrincipal, ActionUpdate}:  "Update users",
	{ResourcePrincipal, ActionDelete}:  "Deactivate users",
	{ResourceRole, ActionCreate}:       "Create roles",
	{ResourceRole, ActionRead}:         "View roles",
	{ResourceRole, ActionUpdate}:       "Edit role permissions",
	{ResourceRole, ActionDelete}:       "Deactivate roles",
	{ResourceRole, ActionAssign}:       "Assign roles",
	{ResourceRole, ActionRevoke}:       "Revoke roles",
	{ResourceGroup, ActionCreate}:      "Create groups",
	{ResourceGroup, ActionRead}:        "View groups",
	{ResourceGroup, ActionUpdate}:      "Manage group members and roles",
	{ResourceGroup, ActionDelete}:      "Deactivate groups",
	{ResourceAssignment, ActionCreate}: "Assign advisors to tenants",
	{ResourceAssignment, ActionRead}:   "View advisor assignments",
	{ResourceAssignment, ActionUpdate}: "Change primary advisor",
	{ResourceAssignment, ActionRevoke}: "Remove advisor assignments",
	{ResourceCampaign, ActionCreate}:   "Create access review campaigns",
	{ResourceCampaign, ActionRead}:     "View access review campaigns",
	{ResourceCampaign, ActionDecide}:   "Record access review decisions",
	{ResourceCampaign, ActionClose}:    "Close access review campaigns",
	{ResourceCampaign, ActionExport}:   "Export access review evidence",
	{ResourceAudit, ActionRead}:        "View audit history",
	{ResourceAudit, ActionExport}:      "Export audit history",
	{ResourceReport, ActionRead}:       "View reports",
	{ResourceSettings, ActionRead}:     "View settings",
	{ResourceSettings, ActionUpdate}:   "Update settings",
}

// Label returns the human label for a catalog permission, or the key form
// for permissions outside the catalog.
func Label(p Permission) string {
	if l, ok := labels[p]; ok {
		return l
	}
	return p.String()
}

// All returns every permission in the catalog. The slice is a copy; callers
// may reorder it freely.
func All() []Permission {
	out := make([]Permission, 0, len(labels))
	for p := range labels {
		out = append(out, p)
	}
	return out
}

// tierBundles maps each tier to its default permission bundle.
var tierBundles = map[Tier][]Permission{
	TierPlatformAdmin: All(),
	TierTenantManager: {
		{ResourceTenant, ActionRead},
		{ResourceTenant, ActionUpdate},
		{ResourcePrincipal, ActionCreate},
		{ResourcePrincipal, ActionRead},
		{ResourcePrincipal, ActionUpdate},
		{ResourcePrincipal, ActionDelete},
		{ResourceRole, ActionCreate},
		{ResourceRole, ActionRead},
		{ResourceRole, ActionUpdate},
		{ResourceRole, ActionAssign},
		{ResourceRole, ActionRevoke},
		{ResourceGroup, ActionCreate},
		{ResourceGroup, ActionRead},
		{ResourceGroup, ActionUpdate},
		{ResourceGroup, ActionDelete},
		{ResourceAssignment, ActionRead},
		{ResourceCampaign, ActionCreate},
		{ResourceCampaign, ActionRead},
		{ResourceCampaign, ActionDecide},
		{ResourceCampaign, ActionClose},
		{ResourceCampaign, ActionExport},
		{ResourceAudit, ActionRead},
		{ResourceReport, ActionRead},
		{ResourceSettings, ActionRead},
		{ResourceSettings, ActionUpdate},
	},
	TierAdvisor: {
		{ResourceTenant, ActionRead},
		{ResourcePrincipal, ActionRead},
		{ResourceRole, ActionRead},
		{ResourceGroup, ActionRead},
		{ResourceAssignment, ActionRead},
		{ResourceCampaign, ActionRead},
		{ResourceCampaign, ActionDecide},
		{ResourceReport, ActionRead},
		{ResourceSettings, ActionRead},
	},
	TierCustomer: {
		{ResourceTenant, ActionRead},
		{ResourceReport, ActionRead},
		{ResourceSettings, ActionRead},
	},
}

// TierBundle returns the default permission bundle for a tier. Unknown
// tiers get an empty bundle. The slice is a copy.
func TierBundle(t Tier) []Permission {
	bundle, ok := tierBundles[t]
	if !ok {
		return nil
	}
	out := make([]Permission, len(bundle))
	copy(out, bundle)
	return out
}
