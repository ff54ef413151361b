// Package errs defines the error taxonomy shared by the terminology store,
// mapping table, and resolver. Validation and referential-integrity errors
// are always surfaced to the caller; only external-collaborator failures
// (ErrUnavailable) are recovered locally by the resolver.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound indicates a record, mapping row, or code does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateCode indicates an insert with a code that already exists.
	ErrDuplicateCode = errors.New("duplicate code")

	// ErrInvalidRecord indicates a record that fails ingestion validation,
	// e.g. keywords normalize to an empty set.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrImmutableField indicates an attempt to change an immutable field.
	ErrImmutableField = errors.New("immutable field")

	// ErrReferenced indicates a delete blocked by live mapping references.
	ErrReferenced = errors.New("still referenced")

	// ErrConflict indicates a mapping invariant violation, e.g. a second
	// EXACT mapping for the same (sourceCode, targetSystem) pair.
	ErrConflict = errors.New("conflict")

	// ErrInvalidQuery indicates an empty or whitespace-only search query.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUnavailable indicates the external code-resolution collaborator
	// failed or timed out.
	ErrUnavailable = errors.New("external service unavailable")

	// ErrInvalidInput indicates bad input to a pure builder, e.g. a bundle
	// requested with requireMapping on a record that has no mappings.
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundf wraps ErrNotFound with the offending code or query.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// DuplicateCodef wraps ErrDuplicateCode with the offending code.
func DuplicateCodef(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrDuplicateCode)...)
}

// InvalidRecordf wraps ErrInvalidRecord with the violated invariant.
func InvalidRecordf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidRecord)...)
}

// ImmutableFieldf wraps ErrImmutableField with the offending field.
func ImmutableFieldf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrImmutableField)...)
}

// Conflictf wraps ErrConflict with the violated invariant.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// Referencedf wraps ErrReferenced with the offending code.
func Referencedf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrReferenced)...)
}

// Unavailablef wraps ErrUnavailable with the collaborator failure detail.
func Unavailablef(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnavailable)...)
}

// HTTPStatus maps a taxonomy error to the HTTP status a handler should return.
// Unrecognized errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrConflict), errors.Is(err, ErrReferenced):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidRecord), errors.Is(err, ErrImmutableField),
		errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
