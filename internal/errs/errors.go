// Package errs provides the unified error type used across the introspection
// engine.
//
// Every subsystem (connection drivers, dialect adapters, the orchestrator,
// the snapshot store, …) wraps its native errors into *errs.Error before
// returning them to callers. Callers use the Is* predicates to handle errors
// without importing driver-specific packages.
//
// Usage:
//
//	// In a driver — wrap native errors:
//	return errs.Wrap(errs.ErrKindCatalogQuery, "columns query failed", pgErr)
//
//	// In the orchestrator — check error kind:
//	if errs.IsUnsupported(err) {
//	    manifest.MarkUnsupported(layer)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing engine-specific codes.
// All backends (Postgres, MySQL, SQL Server, SQLite, MinIO) map their native
// errors to one of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindCatalogQuery             // a metadata query failed: connection drop, lock timeout, permission, syntax
	ErrKindConnectionFailed         // cannot reach or authenticate to the backend
	ErrKindUnsupported              // the feature does not exist for this engine; informational, not a fault
	ErrKindPartialResult            // some objects were introspected, others skipped
	ErrKindDanglingReference        // a reference points at an object outside the introspected scope
	ErrKindDuplicateKey             // a model invariant violation: two objects with the same key
	ErrKindCancelled                // caller-initiated cancellation; terminal but not an error condition
	ErrKindInvalidInput             // bad arguments from the caller
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindCatalogQuery:
		return "catalog_query_failed"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindUnsupported:
		return "unsupported"
	case ErrKindPartialResult:
		return "partial_result"
	case ErrKindDanglingReference:
		return "dangling_reference"
	case ErrKindDuplicateKey:
		return "duplicate_key"
	case ErrKindCancelled:
		return "cancelled"
	case ErrKindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all subsystems.
// Drivers and adapters produce it; callers inspect it via the Is* predicates.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an *Error with a formatted message and no cause.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Wrapf creates an *Error with a formatted message and an underlying cause.
func Wrapf(kind ErrKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// --- Predicates ---

// IsCatalogQuery reports whether err is a failed metadata query
// (connection drop, lock timeout, permission, or syntax issue).
func IsCatalogQuery(err error) bool {
	return KindOf(err) == ErrKindCatalogQuery
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsUnsupported reports whether err marks a feature the engine does not have.
func IsUnsupported(err error) bool {
	return KindOf(err) == ErrKindUnsupported
}

// IsPartialResult reports whether err marks an operation that produced
// some results but skipped unreadable objects.
func IsPartialResult(err error) bool {
	return KindOf(err) == ErrKindPartialResult
}

// IsDanglingReference reports whether err marks a reference to an object
// outside the introspected scope.
func IsDanglingReference(err error) bool {
	return KindOf(err) == ErrKindDanglingReference
}

// IsDuplicateKey reports whether err marks two objects sharing one key.
func IsDuplicateKey(err error) bool {
	return KindOf(err) == ErrKindDuplicateKey
}

// IsCancelled reports whether err was caused by caller cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == ErrKindCancelled
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
