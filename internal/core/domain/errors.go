// Package domain defines the core domain models for chaingate.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes follow the format CG-<AREA>-<NNNN>, where the last four digits mirror
// the closest HTTP status.
type DomainError struct {
	Code    string // Error code (e.g., "CG-SESS-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Text returns the message without the code prefix. This is what clients
// see in response bodies.
func (e *DomainError) Text() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
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
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
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

// ErrorText renders err the way it is written to clients: the message of
// the outermost DomainError, or err.Error() for anything else.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Text()
	}
	return err.Error()
}

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionNotFound indicates no live session matches the cookie.
	ErrSessionNotFound = NewDomainError("CG-SESS-4040", "session not found")

	// ErrNotAuthenticated indicates the request carries no valid session.
	ErrNotAuthenticated = NewDomainError("CG-SESS-4010", "not authenticated")

	// ErrInvalidCredentials indicates the credential check failed.
	ErrInvalidCredentials = NewDomainError("CG-SESS-4011", "invalid credentials")
)

// ============================================================================
// Request Errors (REQ)
// ============================================================================

var (
	// ErrForbidden indicates a URI outside every known surface.
	ErrForbidden = NewDomainError("CG-REQ-4030", "URI not support")

	// ErrNoCommand indicates an envelope without a method.
	ErrNoCommand = NewDomainError("CG-REQ-4000", "no command found")

	// ErrMalformedRequest indicates a body that could not be decoded.
	ErrMalformedRequest = NewDomainError("CG-REQ-4001", "malformed request")

	// ErrBodyTooLarge indicates a request body over the configured limit.
	ErrBodyTooLarge = NewDomainError("CG-REQ-4130", "request body too large")

	// ErrHeaderTooLarge indicates request headers over the configured limit.
	ErrHeaderTooLarge = NewDomainError("CG-REQ-4310", "request header fields too large")

	// ErrRateLimited indicates the client exhausted its request budget.
	ErrRateLimited = NewDomainError("CG-REQ-4290", "rate limit exceeded")
)

// ============================================================================
// Command Errors (CMD)
// ============================================================================

var (
	// ErrBridgeNotStarted indicates the command bridge is not running.
	ErrBridgeNotStarted = NewDomainError("CG-CMD-5030", "command bridge not started")

	// ErrUnknownCommand indicates no command is registered under the method.
	ErrUnknownCommand = NewDomainError("CG-CMD-4040", "unknown command")

	// ErrInvalidArgument indicates a command received bad parameters.
	ErrInvalidArgument = NewDomainError("CG-CMD-4000", "invalid argument")

	// ErrCommandFailed indicates a command failed while running.
	ErrCommandFailed = NewDomainError("CG-CMD-5000", "command failed")

	// ErrCommandTimeout indicates a command ran past its deadline.
	ErrCommandTimeout = NewDomainError("CG-CMD-5040", "command timed out")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("CG-SYS-5000", "internal server error")

	// ErrStorageError indicates a state store failure.
	ErrStorageError = NewDomainError("CG-SYS-5001", "storage error")
)
