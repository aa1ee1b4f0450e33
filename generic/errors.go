/*
errors.go - Centralized error types for the approval engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages and the HTTP layer match on these with errors.Is/As.

ERROR CATEGORIES:
  1. Validation errors  - malformed input (bad date range, unknown type)
  2. Not-found errors   - unknown request/step/balance
  3. Configuration errors - no approver chain resolvable
  4. Forbidden errors   - actor not allowed to act, or step already acted
  5. Balance errors     - insufficient balance at creation or deduction

PROPAGATION:
  Every error is returned synchronously as the terminal result of the
  triggering operation; nothing is retried automatically. The single
  exception is notification delivery, which is logged and swallowed
  (see notify.go).

SEE ALSO:
  - api/handlers.go: maps these to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input: bad date ranges,
	// missing required fields, unknown request types or decisions.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced request, step, balance,
	// or workflow definition does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration is returned when no approver chain can be
	// resolved for a requester/type.
	ErrConfiguration = errors.New("no approver chain configured")

	// ErrForbidden is returned when the actor is not the owner of the
	// current pending step, lacks the required role, or the step was
	// already acted on.
	ErrForbidden = errors.New("not authorized or already acted")

	// ErrInsufficientBalance is returned at request creation when the
	// closing balance does not cover the requested quantity, and at
	// deduction if it would drive the closing balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError carries the field and reason of a validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "request", "step", "balance", "workflow"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConfigurationError describes an unresolvable chain.
type ConfigurationError struct {
	RequesterID UserID
	Type        RequestType
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no approver chain for requester %s (%s)", e.RequesterID, e.Type)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ForbiddenError identifies the rejected actor and target.
type ForbiddenError struct {
	ActorID   UserID
	RequestID RequestID
	Message   string
}

func (e *ForbiddenError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("actor %s may not act on request %s", e.ActorID, e.RequestID)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	UserID       UserID
	ResourceType string
	Available    decimal.Decimal
	Requested    decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s/%s: available %s, requested %s",
		e.UserID, e.ResourceType, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// rather than a server-side failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrConfiguration)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
