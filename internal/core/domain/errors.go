// Package domain defines the core domain models for Sevault.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// The numeric suffix of a code selects the HTTP status the transport layer
// reports (e.g. "SV-KEY-4040" maps to 404).
type DomainError struct {
	Code    string // Error code (e.g., "SV-KEY-4040")
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

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true // Only check if it's a DomainError
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

// ============================================================================
// Algorithm Errors (ALG)
// ============================================================================

var (
	// ErrAlgorithmUnsupported indicates the algorithm descriptor names no
	// AEAD family the attached element implements.
	ErrAlgorithmUnsupported = NewDomainError("SV-ALG-5010", "algorithm not supported")
)

// ============================================================================
// Key Errors (KEY)
// ============================================================================

var (
	// ErrKeyNotFound indicates the named key does not exist for the caller.
	ErrKeyNotFound = NewDomainError("SV-KEY-4040", "key not found")

	// ErrKeyExists indicates the key name is already taken in the caller's
	// namespace.
	ErrKeyExists = NewDomainError("SV-KEY-4090", "key already exists")

	// ErrKeyNotPermitted indicates the key's policy forbids the requested
	// operation (usage flag or algorithm family mismatch).
	ErrKeyNotPermitted = NewDomainError("SV-KEY-4030", "key policy forbids operation")

	// ErrKeyValidation indicates the key description failed validation.
	ErrKeyValidation = NewDomainError("SV-KEY-4001", "key validation failed")

	// ErrSlotsExhausted indicates the element has no free key slot left.
	ErrSlotsExhausted = NewDomainError("SV-KEY-5030", "no free key slot on element")
)

// ============================================================================
// Cryptographic Errors (CRYPT)
// ============================================================================

var (
	// ErrCryptoFailure is the single opaque failure reported for both an
	// authentication failure on decrypt and any underlying device error.
	// Collapsing the two is deliberate: callers must not be able to probe
	// which check failed. Device detail is logged server-side only.
	ErrCryptoFailure = NewDomainError("SV-CRYPT-5000", "cryptographic operation failed")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrCredentialsMissing indicates no application credentials were provided.
	ErrCredentialsMissing = NewDomainError("SV-AUTH-4010", "application credentials not provided")

	// ErrCredentialsInvalid indicates the application credentials are invalid.
	ErrCredentialsInvalid = NewDomainError("SV-AUTH-4011", "invalid application credentials")

	// ErrApplicationDisabled indicates the application has been disabled.
	ErrApplicationDisabled = NewDomainError("SV-AUTH-4012", "application disabled")

	// ErrPermissionDenied indicates insufficient permissions.
	ErrPermissionDenied = NewDomainError("SV-AUTH-4030", "permission denied")

	// ErrIPNotAllowed indicates the client address is outside the allowlist.
	ErrIPNotAllowed = NewDomainError("SV-AUTH-4031", "client address not allowed")
)

// ============================================================================
// Application Errors (APP)
// ============================================================================

var (
	// ErrApplicationNotFound indicates the application was not found.
	ErrApplicationNotFound = NewDomainError("SV-APP-4040", "application not found")

	// ErrApplicationConflict indicates the application ID already exists.
	ErrApplicationConflict = NewDomainError("SV-APP-4090", "application id conflict")

	// ErrApplicationValidation indicates application data validation failed.
	ErrApplicationValidation = NewDomainError("SV-APP-4001", "application validation failed")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("SV-SYS-5000", "internal server error")

	// ErrStorageError indicates a storage layer error.
	ErrStorageError = NewDomainError("SV-SYS-5001", "storage error")

	// ErrServiceUnavailable indicates the service is temporarily unavailable.
	ErrServiceUnavailable = NewDomainError("SV-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("SV-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("SV-SYS-4290", "too many requests")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("SV-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("SV-ARG-1002", "missing required argument")

	// ErrCiphertextTooShort indicates the ciphertext cannot even hold the
	// authentication tag the algorithm descriptor resolves to.
	ErrCiphertextTooShort = NewDomainError("SV-ARG-1004", "ciphertext shorter than authentication tag")
)
