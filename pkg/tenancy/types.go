package tenancy

import "time"

// AdvisorAssignment relates one advisor principal to one tenant. At most
// one active assignment exists per (advisor, tenant) pair and at most one
// active assignment per tenant carries the primary flag.
type AdvisorAssignment struct {
	ID           int64      `json:"id"`
	AdvisorID    int64      `json:"advisor_id"`
	TenantID     int64      `json:"tenant_id"`
	Active       bool       `json:"active"`
	Primary      bool       `json:"primary"`
	AssignedBy   *int64     `json:"assigned_by,omitempty"`
	AssignedAt   time.Time  `json:"assigned_at"`
	UnassignedAt *time.Time `json:"unassigned_at,omitempty"`
}
