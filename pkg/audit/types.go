package audit

import (
	"reflect"
	"time"
)

// ActorType distinguishes who (or what) performed an audited action.
type ActorType string

const (
	ActorUser    ActorType = "user"
	ActorService ActorType = "service"
	ActorSystem  ActorType = "system"
)

// ChangeDetails holds the state of the target before and after a mutation,
// trimmed to the keys that actually changed.
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// Entry is one immutable audit record. Entries are append-only; nothing in
// this package updates or deletes individual rows outside retention sweeps.
type Entry struct {
	ID         int64         `json:"id"`
	TenantID   *int64        `json:"tenant_id,omitempty"`
	ActorID    *int64        `json:"actor_id,omitempty"`
	ActorType  ActorType     `json:"actor_type"`
	Action     string        `json:"action"`
	TargetType string        `json:"target_type"`
	TargetID   string        `json:"target_id"`
	TargetName string        `json:"target_name,omitempty"`
	Changes    ChangeDetails `json:"changes,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Filter narrows a search. Zero-valued fields are ignored.
type Filter struct {
	TenantID    *int64
	ActorID     *int64
	Actions     []string
	TargetTypes []string
	TargetID    string
	Since       *time.Time
	Until       *time.Time
	// Ascending returns entries oldest first, i.e. creation order. The
	// default is newest first.
	Ascending bool
	Limit     int
	Offset    int
}

// Diff reduces two state snapshots to the keys whose values differ. Keys
// present only on one side are included with the side they appear on.
func Diff(before, after map[string]interface{}) ChangeDetails {
	d := ChangeDetails{}
	for k, b := range before {
		a, ok := after[k]
		if !ok || !equalValue(a, b) {
			if d.Before == nil {
				d.Before = map[string]interface{}{}
			}
			d.Before[k] = b
		}
	}
	for k, a := range after {
		b, ok := before[k]
		if !ok || !equalValue(a, b) {
			if d.After == nil {
				d.After = map[string]interface{}{}
			}
			d.After[k] = a
		}
	}
	return d
}

func equalValue(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}
