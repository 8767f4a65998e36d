// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

var (
	// ErrNotFound indicates the requested plan, routine, diary or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input; no state was changed.
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized indicates a missing or expired capability token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the actor may not touch the target entity.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates the operation is not allowed in the entity's current state,
	// e.g. activating a routine of a non-active plan.
	ErrConflict = errors.New("conflict")

	// ErrVersionConflict indicates optimistic concurrency failure (expected version mismatch).
	ErrVersionConflict = errors.New("version conflict")

	// ErrTransient indicates the call to the backing store did not complete.
	ErrTransient = errors.New("transient failure")
)
