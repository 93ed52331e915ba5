package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of a convergence failure.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on a
	// later run, e.g. an interrupted converge.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates rate limiting by the system being converged.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict indicates the resource changed underneath the provider.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a failure that will repeat until the
	// declaration or the node changes.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError is a classified convergence error with resource context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the identity of the resource that failed, if any.
	Resource string `json:"resource,omitempty"`

	// Action is the action being run when the error occurred.
	Action string `json:"action,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.Message
	switch {
	case e.Resource != "" && e.Action != "":
		msg = fmt.Sprintf("%s (resource=%s, action=%s)", msg, e.Resource, e.Action)
	case e.Resource != "":
		msg = fmt.Sprintf("%s (resource=%s)", msg, e.Resource)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Class, msg, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches on class and code so sentinels like ErrAborted work with errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewThrottledError creates a new throttled error.
func NewThrottledError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassThrottled, Message: message, Err: err}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassConflict, Message: message, Err: err}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassPermanent, Message: message, Err: err}
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(identity string) *EngineError {
	e.Resource = identity
	return e
}

// WithAction adds action context to an error.
func (e *EngineError) WithAction(action string) *EngineError {
	e.Action = action
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Classify returns the class of the first EngineError in err's chain.
// Unclassified errors are permanent.
func Classify(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassPermanent
}

// CodeOf returns the code of the first EngineError in err's chain.
func CodeOf(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *EngineError
	return errors.As(err, &e) && e.Class == ErrorClassTransient
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	return err != nil && Classify(err) == ErrorClassPermanent
}

// IsRetryable returns true if a later run may succeed without changes.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err) {
	case ErrorClassTransient, ErrorClassThrottled, ErrorClassConflict:
		return true
	}
	return false
}

// Error codes.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodePermissionDenied  = "PERMISSION_DENIED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeAborted           = "ABORTED"
	ErrCodeNoProvider        = "NO_PROVIDER"
	ErrCodeUnsupportedAction = "UNSUPPORTED_ACTION"
	ErrCodeGuardFailed       = "GUARD_FAILED"
	ErrCodeLoadState         = "LOAD_STATE_FAILED"
	ErrCodeProviderFailed    = "PROVIDER_FAILED"
	ErrCodeDependencyFailed  = "DEPENDENCY_FAILED"
)

// ErrAborted matches any error produced when a converge is interrupted
// before it finishes, e.g. by context cancellation.
var ErrAborted = &EngineError{Class: ErrorClassTransient, Code: ErrCodeAborted, Message: "converge aborted"}

func abortError(cause error) *EngineError {
	return NewTransientError("converge aborted", cause).WithCode(ErrCodeAborted)
}
