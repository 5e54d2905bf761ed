// Package apperr defines the typed error taxonomy for the reservation core.
// Services return these errors; handlers map them to HTTP status codes.
// No partial writes survive any of them — a failed transaction rolls back
// before the error reaches the caller.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation — malformed input, rejected before any state change.
	ErrValidation = errors.New("validation error")
	// ErrVehicleConflict — authoritative overlap detected during approval;
	// the request remains pending.
	ErrVehicleConflict = errors.New("vehicle conflict")
	// ErrStaleState — an optimistic-concurrency precondition failed because
	// another actor already resolved the entity. Refresh and retry.
	ErrStaleState = errors.New("stale state")
	// ErrInvalidTransition — the operation is not valid for the entity's
	// current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotFound — the referenced id does not exist.
	ErrNotFound = errors.New("not found")
)

func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func VehicleConflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrVehicleConflict, fmt.Sprintf(format, args...))
}

func StaleState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrStaleState, fmt.Sprintf(format, args...))
}

func InvalidTransition(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
