// Package domainerrors defines the closed error taxonomy shared across the
// credential engine. Every business failure maps to exactly one Code so
// callers can match exhaustively, and no cryptographic or storage library
// diagnostic ever reaches the HTTP response body.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a domain failure class.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeAlreadyRegistered  Code = "already_registered"
	CodeNotFound           Code = "not_found"
	CodeAccountLocked      Code = "account_locked"
	CodeRiskBlocked        Code = "risk_blocked"
	CodeWrongCredential    Code = "wrong_credential"
	CodeDecryptionError    Code = "decryption_error"
	CodeStorageUnavailable Code = "storage_unavailable"
	CodeUnauthorized       Code = "unauthorized"
	CodeInternal           Code = "internal"
)

// Error carries a domain code, a caller-safe message, and optional structured
// metadata (locked_until, attempts_remaining, flags). The wrapped cause is
// for logs only and is never serialized.
type Error struct {
	Code    Code
	Message string
	Meta    map[string]any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a domain code to an underlying infrastructure error. The
// cause stays reachable via errors.Unwrap for logging.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithMeta adds a structured detail to the error. It returns a copy so the
// sentinel errors declared at package level stay immutable.
func (e *Error) WithMeta(key string, value any) *Error {
	clone := &Error{Code: e.Code, Message: e.Message, cause: e.cause}
	clone.Meta = make(map[string]any, len(e.Meta)+1)
	for k, v := range e.Meta {
		clone.Meta[k] = v
	}
	clone.Meta[key] = value
	return clone
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on Code so sentinel comparisons survive WithMeta copies.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// CodeOf extracts the domain code from any error chain, defaulting to
// CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// MetaOf extracts the structured metadata from an error chain, or nil.
func MetaOf(err error) map[string]any {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Meta
	}
	return nil
}

// ToHTTPStatus maps a domain code to its transport status. Kept next to the
// codes so the mapping stays total when a code is added.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeDecryptionError:
		return http.StatusBadRequest
	case CodeAlreadyRegistered:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAccountLocked:
		return http.StatusLocked
	case CodeRiskBlocked:
		return http.StatusForbidden
	case CodeWrongCredential, CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
