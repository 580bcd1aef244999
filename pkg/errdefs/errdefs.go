// Package errdefs defines the error taxonomy shared by every iamcore
// component. Callers branch on the kind of a failure, never on its message.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller.
type Kind int

const (
	// KindValidation marks malformed input; recoverable by the caller.
	KindValidation Kind = iota + 1
	// KindPermissionDenied marks a principal lacking a required permission.
	KindPermissionDenied
	// KindTenantAccessDenied marks a principal acting outside its tenant
	// boundary. Externally indistinguishable from KindNotFound.
	KindTenantAccessDenied
	// KindNotFound marks a missing record.
	KindNotFound
	// KindConflict marks uniqueness or terminal-state violations.
	KindConflict
	// KindInternal marks storage or unexpected failures; details are logged,
	// callers see an opaque error.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermissionDenied:
		return "permission_denied"
	case KindTenantAccessDenied:
		return "tenant_access_denied"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Error is a kinded error. It wraps an optional cause.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// Is matches two errdefs errors by kind so that sentinel comparisons via
// errors.Is work.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.kind == t.kind
	}
	return false
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Validation returns a KindValidation error.
func Validation(format string, args ...interface{}) error {
	return newf(KindValidation, format, args...)
}

// PermissionDenied returns a KindPermissionDenied error.
func PermissionDenied(format string, args ...interface{}) error {
	return newf(KindPermissionDenied, format, args...)
}

// TenantAccessDenied returns a KindTenantAccessDenied error.
func TenantAccessDenied(format string, args ...interface{}) error {
	return newf(KindTenantAccessDenied, format, args...)
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...interface{}) error {
	return newf(KindNotFound, format, args...)
}

// Conflict returns a KindConflict error.
func Conflict(format string, args ...interface{}) error {
	return newf(KindConflict, format, args...)
}

// Internal wraps an unexpected failure. The cause is preserved for logging
// but the message shown to callers stays opaque.
func Internal(cause error, format string, args ...interface{}) error {
	e := newf(KindInternal, format, args...)
	e.cause = cause
	return e
}

// KindOf returns the kind of err, or KindInternal for errors outside the
// taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

func is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.kind == kind
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return is(err, KindValidation) }

// IsPermissionDenied reports whether err is a permission denial.
func IsPermissionDenied(err error) bool { return is(err, KindPermissionDenied) }

// IsTenantAccessDenied reports whether err is a tenant boundary denial.
func IsTenantAccessDenied(err error) bool { return is(err, KindTenantAccessDenied) }

// IsNotFound reports whether err is a missing-record failure.
func IsNotFound(err error) bool { return is(err, KindNotFound) }

// IsConflict reports whether err is a uniqueness or terminal-state
// violation.
func IsConflict(err error) bool { return is(err, KindConflict) }

// ExternalCode maps an error to the code surfaced outside the module.
// Tenant boundary denials deliberately share the NOT_FOUND code so that a
// cross-tenant probe cannot confirm a resource exists.
func ExternalCode(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return "VALIDATION"
	case KindPermissionDenied:
		return "PERMISSION_DENIED"
	case KindTenantAccessDenied, KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}
