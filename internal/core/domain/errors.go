package domain

import (
	"errors"
	"fmt"
)

// DomainError is an error carrying a stable code of the form
// KD-<AREA>-<NNNN>, where the trailing number mirrors the closest HTTP
// status for the failure.
type DomainError struct {
	Code    string // e.g. "KD-NET-5030"
	Message string // human-readable message
	Details string
	Status  int   // HTTP status when the error came from a response
	Cause   error // underlying error, if any
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// WithStatus returns a copy of the error tagged with an HTTP status.
func (e *DomainError) WithStatus(status int) *DomainError {
	c := *e
	c.Status = status
	return &c
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// StatusOf returns the HTTP status recorded on a DomainError in err's
// chain, or 0.
func StatusOf(err error) int {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Status
	}
	return 0
}

// ============================================================================
// Network Errors (NET)
// ============================================================================

var (
	// ErrNetwork indicates the backend could not be reached.
	ErrNetwork = NewDomainError("KD-NET-5030", "Network error. Please check your connection.")

	// ErrTimeout indicates the request deadline elapsed before a response arrived.
	ErrTimeout = NewDomainError("KD-NET-5040", "Request timed out. Please try again.")

	// ErrInvalidResponse indicates the response body could not be decoded.
	ErrInvalidResponse = NewDomainError("KD-NET-5020", "invalid response from server")

	// ErrCanceled indicates the caller gave up waiting.
	ErrCanceled = NewDomainError("KD-NET-4990", "request canceled")
)

// ============================================================================
// HTTP Errors (HTTP)
// ============================================================================

var (
	// ErrHTTPStatus is the generic non-2xx error; Status carries the code.
	ErrHTTPStatus = NewDomainError("KD-HTTP-5000", "Server error. Please try again later.")

	// ErrBadRequest indicates the backend rejected the request body.
	ErrBadRequest = NewDomainError("KD-HTTP-4000", "bad request")

	// ErrNotFound indicates the resource does not exist.
	ErrNotFound = NewDomainError("KD-HTTP-4040", "resource not found")

	// ErrConflict indicates the resource already exists.
	ErrConflict = NewDomainError("KD-HTTP-4090", "resource already exists")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrAuthFailed indicates the credentials were rejected.
	ErrAuthFailed = NewDomainError("KD-AUTH-4010", "Authentication failed. Please check your credentials.")

	// ErrSessionInvalid indicates the stored session is no longer accepted.
	ErrSessionInvalid = NewDomainError("KD-AUTH-4011", "Session expired. Please log in again.")

	// ErrNotAuthenticated indicates an operation requires a logged-in session.
	ErrNotAuthenticated = NewDomainError("KD-AUTH-4012", "not authenticated")

	// ErrPermissionDenied indicates insufficient permissions.
	ErrPermissionDenied = NewDomainError("KD-AUTH-4030", "You do not have permission to perform this action.")
)

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrStorage indicates a storage layer error.
	ErrStorage = NewDomainError("KD-STOR-5001", "storage error")

	// ErrStorageEncode indicates a value could not be serialized for storage.
	ErrStorageEncode = NewDomainError("KD-STOR-4001", "value cannot be encoded")

	// ErrInvalidBackup indicates an import document is malformed.
	ErrInvalidBackup = NewDomainError("KD-STOR-4002", "invalid backup data format")
)

// ============================================================================
// Validation Errors (VAL)
// ============================================================================

var (
	// ErrValidation indicates request or credential validation failed.
	ErrValidation = NewDomainError("KD-VAL-4220", "Please check your input and try again.")

	// ErrInvalidArgument indicates a malformed CLI or SDK argument.
	ErrInvalidArgument = NewDomainError("KD-VAL-4000", "invalid argument")
)

// ErrRateLimited indicates the client-side limiter or the backend refused the request.
var ErrRateLimited = NewDomainError("KD-RATE-4290", "too many requests")

// FromHTTPStatus maps a non-2xx response to a DomainError tagged with
// the status. msg, when non-empty, replaces the default message.
func FromHTTPStatus(status int, msg string) *DomainError {
	var base *DomainError
	switch {
	case status == 400:
		base = ErrBadRequest
	case status == 401:
		base = ErrSessionInvalid
	case status == 403:
		base = ErrPermissionDenied
	case status == 404:
		base = ErrNotFound
	case status == 409:
		base = ErrConflict
	case status == 422:
		base = ErrValidation
	case status == 429:
		base = ErrRateLimited
	default:
		base = ErrHTTPStatus
	}
	e := base.WithStatus(status)
	if msg != "" {
		e.Message = msg
	}
	return e
}
