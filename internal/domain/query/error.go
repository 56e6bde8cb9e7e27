// Package query defines the pipeline's result, error and parameter types.
package query

import (
	"errors"
	"fmt"

	"github.com/Strob0t/paddock/internal/domain"
)

// ErrorKind is the failure taxonomy surfaced to callers.
type ErrorKind string

const (
	// ErrValidationFailed is a malformed or incomplete intent. Never retried.
	ErrValidationFailed ErrorKind = "validation_failed"
	// ErrIdentityNotFound means a driver or track reference did not resolve.
	ErrIdentityNotFound ErrorKind = "identity_not_found"
	// ErrInvalidTeammatePair means the drivers were not teammates that season.
	ErrInvalidTeammatePair ErrorKind = "invalid_teammate_pair"
	// ErrExecutionFailed covers store and template failures, and zero-row
	// results with reason ReasonInsufficientData.
	ErrExecutionFailed ErrorKind = "execution_failed"
)

// Failure reasons.
const (
	ReasonInsufficientData = "INSUFFICIENT_DATA"
	ReasonStoreError       = "STORE_ERROR"
	ReasonTemplateError    = "TEMPLATE_ERROR"
	ReasonStoreUnavailable = "STORE_UNAVAILABLE"
)

// Error is returned in place of a Result, never alongside one.
type Error struct {
	Kind    ErrorKind      `json:"error"`
	Reason  string         `json:"reason"`
	Details map[string]any `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// InsufficientData reports whether e is the zero-row execution failure.
func (e *Error) InsufficientData() bool {
	return e.Kind == ErrExecutionFailed && e.Reason == ReasonInsufficientData
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// ValidationFailed wraps a validation error. The reason is the validation
// message without the sentinel prefix.
func ValidationFailed(err error) *Error {
	reason := err.Error()
	if errors.Is(err, domain.ErrValidation) {
		if prefix := domain.ErrValidation.Error() + ": "; len(reason) > len(prefix) && reason[:len(prefix)] == prefix {
			reason = reason[len(prefix):]
		}
	}
	return &Error{Kind: ErrValidationFailed, Reason: reason, cause: err}
}

// IdentityNotFound names the unresolved input and the field it came from.
func IdentityNotFound(field, input string) *Error {
	return &Error{
		Kind:    ErrIdentityNotFound,
		Reason:  fmt.Sprintf("no %s matches %q", field, input),
		Details: map[string]any{"field": field, "input": input},
	}
}

// InvalidTeammatePair reports drivers that did not share a team in season.
func InvalidTeammatePair(season int, driverA, teamA, driverB, teamB string) *Error {
	return &Error{
		Kind:   ErrInvalidTeammatePair,
		Reason: fmt.Sprintf("%s and %s were not teammates in %d", driverA, driverB, season),
		Details: map[string]any{
			"season":      season,
			"driver_a_id": driverA,
			"team_a_id":   teamA,
			"driver_b_id": driverB,
			"team_b_id":   teamB,
		},
	}
}

// InsufficientData is the zero-row failure. It is not cached.
func InsufficientData(templateID string) *Error {
	return &Error{
		Kind:    ErrExecutionFailed,
		Reason:  ReasonInsufficientData,
		Details: map[string]any{"template_id": templateID},
	}
}

// ExecutionFailed wraps an unexpected store or template failure.
func ExecutionFailed(reason string, err error) *Error {
	return &Error{Kind: ErrExecutionFailed, Reason: reason, cause: err}
}
