package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Lifecycle and reconciliation errors.
var (
	ErrUnauthorizedRole        = New("UNAUTHORIZED_ROLE", http.StatusForbidden, "actor role not permitted for this operation")
	ErrInvalidTransition       = New("INVALID_TRANSITION", http.StatusConflict, "record is not in the expected state for this transition")
	ErrDuplicateApplication    = New("DUPLICATE_ACTIVE_APPLICATION", http.StatusConflict, "an approved application already exists for this course")
	ErrAlreadyRegistered       = New("ALREADY_REGISTERED", http.StatusConflict, "student already has an active registration")
	ErrNoApprovedApplication   = New("NO_APPROVED_APPLICATION", http.StatusPreconditionFailed, "no approved application exists for this course")
	ErrInvalidSubjectSelection = New("INVALID_SUBJECT_SELECTION", http.StatusBadRequest, "subject selection is empty or outside the course catalog")
	ErrPartialRegistration     = New("PARTIAL_REGISTRATION", http.StatusInternalServerError, "registration stored but subject enrollments are incomplete; retry to repair")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails returns a copy of the error carrying structured field detail.
func WithDetails(err *Error, details map[string]string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if len(details) > 0 {
		merged := make(map[string]string, len(clone.Details)+len(details))
		for k, v := range clone.Details {
			merged[k] = v
		}
		for k, v := range details {
			merged[k] = v
		}
		clone.Details = merged
	}
	return &clone
}
