// Package review implements access review campaigns over frozen entitlement snapshots.
//
// # Overview
//
// A campaign captures a point-in-time snapshot of who holds what within a
// tenant, then walks a linear lifecycle (DRAFT, IN_REVIEW, SUBMITTED,
// COMPLETED) while reviewers render a verdict on every item: keep, remove,
// or change. Verdicts may be revised to another verdict but never reverted
// to pending, and nothing changes once the campaign is closed.
//
// # Derived State
//
// Counters (total/completed subjects and items) and the second-level
// approval flag are never patched incrementally. Recompute re-derives them
// by full scan in memory, and the store re-aggregates them in SQL inside
// the same transaction as the decision write. Any item in the top two
// privilege tiers makes second-level approval required, permanently, even
// when its verdict is keep.
//
// # Closure
//
// Closing with pending items is legal: review deadlines govern, and the
// CSV export records what was left undecided. Ad hoc reviews are a
// separate lightweight type with a bare OPEN/CLOSED lifecycle and no
// completion precondition.
//
// # Decision Effects
//
// ApplyDecisionEffects enacts verdicts against live assignments: remove
// strips the subject's direct roles and group memberships, change replaces
// the direct role set, keep touches nothing.
//
// # Related Packages
//
//   - pkg/rbac: The assignment store the effects mutate
//   - pkg/audit: Where callers record rendered verdicts
package review
