// Package errors provides the domain error taxonomy for the Confluence adapter.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failed Confluence operation so callers can branch on it.
type Kind string

const (
	KindPageNotFound            Kind = "PAGE_NOT_FOUND"
	KindSpaceNotFound           Kind = "SPACE_NOT_FOUND"
	KindInsufficientPermissions Kind = "INSUFFICIENT_PERMISSIONS"
	KindEmptyContent            Kind = "EMPTY_CONTENT"
	KindLabelExists             Kind = "LABEL_EXISTS"
	KindLabelNotFound           Kind = "LABEL_NOT_FOUND"
	KindVersionConflict         Kind = "VERSION_CONFLICT"
	KindSearchFailed            Kind = "SEARCH_FAILED"
	KindUnknown                 Kind = "UNKNOWN"
)

// Retryable reports whether the caller may succeed by re-fetching and trying again.
func (k Kind) Retryable() bool {
	return k == KindVersionConflict
}

// Error is a classified failure of a single adapter operation.
type Error struct {
	Kind       Kind
	Op         string // adapter operation, e.g. "get_page"
	Message    string // human-readable message
	StatusCode int    // upstream HTTP status, 0 for network failures
	Err        error  // underlying transport error, if any
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// KindOf returns the Kind of err, or KindUnknown if err is not a classified error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind returns true if err is a classified error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ConnectionReason explains why startup verification failed.
type ConnectionReason string

const (
	ReasonInvalidCredentials        ConnectionReason = "INVALID_CREDENTIALS"
	ReasonInsufficientAuthorization ConnectionReason = "INSUFFICIENT_AUTHORIZATION"
	ReasonMisconfiguredAddress      ConnectionReason = "MISCONFIGURED_ADDRESS"
	ReasonRemoteUnavailable         ConnectionReason = "REMOTE_UNAVAILABLE"
	ReasonConnectionFailed          ConnectionReason = "CONNECTION_FAILED"
)

// ConnectionError is the fatal result of a failed connection check at startup.
type ConnectionError struct {
	Reason     ConnectionReason
	BaseURL    string
	StatusCode int
	Err        error
}

func (e *ConnectionError) Error() string {
	var msg string
	switch e.Reason {
	case ReasonInvalidCredentials:
		msg = "invalid credentials: check CONFLUENCE_EMAIL and CONFLUENCE_API_TOKEN"
	case ReasonInsufficientAuthorization:
		msg = "insufficient authorization: the account cannot read spaces"
	case ReasonMisconfiguredAddress:
		msg = "misconfigured address: check CONFLUENCE_DOMAIN"
	case ReasonRemoteUnavailable:
		msg = "Confluence is unavailable"
	default:
		msg = "failed to connect to Confluence"
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.BaseURL != "" {
		msg += " at " + e.BaseURL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ValidationError indicates invalid input parameters.
type ValidationError struct {
	Field   string // field name that failed validation
	Value   string // the invalid value (may be empty for sensitive data)
	Message string // human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("validation failed for %s=%q: %s", e.Field, e.Value, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
