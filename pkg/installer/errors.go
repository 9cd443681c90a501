package installer

import (
	"errors"
	"fmt"
)

// ErrorKind classifies install errors per the failure discipline shared by
// the orchestrator, step executor, and connectors.
type ErrorKind string

const (
	// KindValidation: a required field is absent or malformed. Raised
	// before any step executes and surfaced synchronously to the caller.
	KindValidation ErrorKind = "validation"

	// KindAlreadyRunning: re-entry while a run is active.
	KindAlreadyRunning ErrorKind = "already_running"

	// KindConnection: network or auth failure against a database engine.
	KindConnection ErrorKind = "connection"

	// KindPrivilege: the authenticated principal lacks a required
	// database privilege.
	KindPrivilege ErrorKind = "privilege"

	// KindCancelled: user-initiated abort observed between steps.
	KindCancelled ErrorKind = "cancelled"

	// KindStep: an OS/engine failure wrapped with step-name context.
	KindStep ErrorKind = "step"

	// KindPersistence: artifact write failure.
	KindPersistence ErrorKind = "persistence"
)

// InstallError is a classified install failure with step context.
type InstallError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the user-safe error message. It never contains raw
	// secrets; connection strings are masked upstream.
	Message string `json:"message"`

	// Step names the install step that failed, when applicable.
	Step string `json:"step,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`

	// Details carries additional user-safe context.
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	if e.Step != "" {
		if e.Err != nil {
			return fmt.Sprintf("[%s] %s (step=%s): %v", e.Kind, e.Message, e.Step, e.Err)
		}
		return fmt.Sprintf("[%s] %s (step=%s)", e.Kind, e.Message, e.Step)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// Is matches on kind so sentinel comparisons work through errors.Is.
func (e *InstallError) Is(target error) bool {
	t, ok := target.(*InstallError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithStep adds step-name context.
func (e *InstallError) WithStep(step string) *InstallError {
	e.Step = step
	return e
}

// WithDetail adds one detail field.
func (e *InstallError) WithDetail(key string, value any) *InstallError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *InstallError {
	return &InstallError{Kind: KindValidation, Message: message}
}

// NewAlreadyRunningError creates a re-entry rejection error.
func NewAlreadyRunningError(correlationID string) *InstallError {
	return (&InstallError{
		Kind:    KindAlreadyRunning,
		Message: "an install is already running",
	}).WithDetail("active_correlation_id", correlationID)
}

// NewConnectionError creates a connection error.
func NewConnectionError(message string, err error) *InstallError {
	return &InstallError{Kind: KindConnection, Message: message, Err: err}
}

// NewPrivilegeError creates a privilege error.
func NewPrivilegeError(message string) *InstallError {
	return &InstallError{Kind: KindPrivilege, Message: message}
}

// NewCancelledError creates a cancellation error.
func NewCancelledError(step string) *InstallError {
	return &InstallError{Kind: KindCancelled, Message: "install cancelled by user", Step: step}
}

// NewStepError wraps an underlying failure with step context.
func NewStepError(step, message string, err error) *InstallError {
	return &InstallError{Kind: KindStep, Message: message, Step: step, Err: err}
}

// NewPersistenceError creates an artifact-write error.
func NewPersistenceError(message string, err error) *InstallError {
	return &InstallError{Kind: KindPersistence, Message: message, Err: err}
}

// KindOf extracts the classification from an error chain, or empty.
func KindOf(err error) ErrorKind {
	var e *InstallError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsCancelled reports whether the error chain holds a cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// IsValidation reports whether the error chain holds a validation error.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsAlreadyRunning reports whether the error chain holds a re-entry
// rejection.
func IsAlreadyRunning(err error) bool {
	return KindOf(err) == KindAlreadyRunning
}
