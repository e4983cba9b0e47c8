package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a create collides with an existing resource.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrNoValidOccurrences is returned when every date of a recurring series fails admissibility.
	ErrNoValidOccurrences = errors.New("application: no valid occurrences")
	// ErrInvalidCredentials is returned when authentication inputs do not match a known account.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when the account exists but has been disabled.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned when a session token has passed its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session token has been revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrConcurrentUpdate is returned when an optimistic version check fails
	// because another actor modified the request first.
	ErrConcurrentUpdate = errors.New("application: concurrent update")
)

// Admissibility reasons surfaced to callers. These are normal outcomes, not
// faults, so they carry stable strings the presentation layer can translate.
const (
	ReasonDateClosed    = "date closed"
	ReasonUserConflict  = "user conflict"
	ReasonQuotaExceeded = "quota exceeded"
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// AdmissibilityError reports that a candidate slot may not be booked. It is an
// expected outcome carrying one of the Reason* constants.
type AdmissibilityError struct {
	Date   string
	Reason string
}

// Error implements the error interface.
func (a *AdmissibilityError) Error() string {
	if a.Date == "" {
		return fmt.Sprintf("request inadmissible: %s", a.Reason)
	}
	return fmt.Sprintf("request inadmissible on %s: %s", a.Date, a.Reason)
}

// InvalidTransitionError indicates a state machine misuse: the request's
// current status does not permit the attempted transition.
type InvalidTransitionError struct {
	From      Status
	Attempted Status
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.Attempted)
}

// CollaboratorError wraps a failure of an external collaborator (conferencing
// provider, closure calendar, repository). Admissibility checks treat it as
// inadmissible (fail closed) rather than assuming availability.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

// Error implements the error interface.
func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s collaborator failed: %v", e.Collaborator, e.Err)
}

// Unwrap exposes the underlying failure for errors.Is/As chains.
func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func collaboratorFailure(name string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Collaborator: name, Err: err}
}
