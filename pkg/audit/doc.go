// Package audit records an append-only trail of authorization-relevant changes.
//
// # Overview
//
// Every mutation worth explaining later (role edits, assignment changes,
// review verdicts, lockouts) becomes an immutable Entry carrying the
// tenant, the actor, the target, and a before/after diff trimmed to the
// keys that changed. Entries are never updated; the only deletion path is
// the retention sweeper.
//
// # Recording
//
// SafeRecorder is the wrapper callers should hold: an audit write failure
// is logged and counted but never propagates, so auditing can never break
// the operation being audited.
//
// # Search
//
// Search filters by tenant, actor, action, target type, target id, and
// time range, returning newest first by default or in creation order with
// Filter.Ascending. Within a single target, entry ids preserve creation
// order even when timestamps collide.
//
// # Retention
//
// Sweeper deletes entries older than the configured age on a cron
// schedule. Retention disabled (zero MaxAge) keeps everything.
//
// # Related Packages
//
//   - pkg/core: Wires the recorder and sweeper from configuration
package audit
