/*
errors.go - Centralized error types for the sales engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every business-rule failure is surfaced to the caller as-is; none of
  them are retryable. Storage failures are wrapped and propagated.

ERROR CATEGORIES:
  1. Validation errors - malformed amounts, missing categories, bad plans
  2. Transition errors - status change not allowed from the current state
  3. Not found errors  - referenced report or plan does not exist
  4. Permission errors - actor role not allowed to perform the operation

USAGE:
  Match on the sentinel with errors.Is, or pull out the detail with errors.As:

    if errors.Is(err, sales.ErrInvalidTransition) { ... }

    var verr *sales.ValidationError
    if errors.As(err, &verr) { log(verr.Field) }

SEE ALSO:
  - approval.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package sales

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when amounts, categories or plan fields are malformed.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a report cannot move to the requested state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound is returned when a referenced report or plan doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrPermission is returned when the actor's role may not perform the operation.
	ErrPermission = errors.New("permission denied")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidTransitionError records the state a report was in when the action was refused.
type InvalidTransitionError struct {
	ReportID ReportID
	From     Status
	Action   Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s report %s: current status is %s", e.Action, e.ReportID, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string // "report" or "plan"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PermissionError reports who tried to do what.
type PermissionError struct {
	ActorID string
	Role    Role
	Action  Action
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s (%s) may not %s", e.ActorID, e.Role, e.Action)
}

func (e *PermissionError) Unwrap() error { return ErrPermission }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrPermission)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
