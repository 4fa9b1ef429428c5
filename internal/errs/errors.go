// Package errs provides the unified error type used across all of cirrus.
//
// Every subsystem (object store drivers, session, catalog, credential
// vault, …) wraps its native errors into *errs.Error before returning
// them to callers. Callers use the Is* predicates to handle errors
// without importing driver-specific packages.
//
// Usage:
//
//	// In a driver — wrap native errors:
//	return errs.Wrap(errs.ErrKindTransport, "request failed", netErr)
//
//	// In a caller — check error kind:
//	if errs.IsNotFound(err) {
//	    // no credentials stored under that ref
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (SigV4 HTTP client, MinIO SDK, catalog drivers, …) map
// their native errors to one of these kinds.
type ErrKind int

const (
	ErrKindUnknown       ErrKind = iota
	ErrKindConfiguration         // credentials or endpoint config missing/malformed
	ErrKindTransport             // bad URL, connection failure, non-HTTP response
	ErrKindProtocol              // non-2xx HTTP status from the storage endpoint
	ErrKindParse                 // response body could not be (fully) parsed
	ErrKindNotFound              // no object, no credentials ref, no catalog record
	ErrKindCanceled              // context deadline / cancellation
	ErrKindStore                 // catalog persistence failure
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindConfiguration:
		return "configuration"
	case ErrKindTransport:
		return "transport"
	case ErrKindProtocol:
		return "protocol"
	case ErrKindParse:
		return "parse"
	case ErrKindNotFound:
		return "not_found"
	case ErrKindCanceled:
		return "canceled"
	case ErrKindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all cirrus subsystems.
// Status and Body are populated only for ErrKindProtocol, where they
// carry the HTTP status code and raw response body of the failed call.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
	Status  int
	Body    string
}

func (e *Error) Error() string {
	switch {
	case e.Kind == ErrKindProtocol:
		return fmt.Sprintf("[%s] %s: status %d: %s", e.Kind, e.Message, e.Status, e.Body)
	case e.Cause != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	default:
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Protocol creates an *Error for a non-2xx HTTP response, carrying the
// status code and response body.
func Protocol(msg string, status int, body string) *Error {
	return &Error{Kind: ErrKindProtocol, Message: msg, Status: status, Body: body}
}

// --- Predicates ---

// IsConfiguration reports whether err was caused by missing or malformed
// credentials / endpoint configuration.
func IsConfiguration(err error) bool {
	return kindOf(err) == ErrKindConfiguration
}

// IsTransport reports whether err is a connectivity-level failure
// (malformed URL, refused connection, non-HTTP response).
func IsTransport(err error) bool {
	return kindOf(err) == ErrKindTransport
}

// IsProtocol reports whether err is a non-2xx HTTP response from the
// storage endpoint.
func IsProtocol(err error) bool {
	return kindOf(err) == ErrKindProtocol
}

// IsParse reports whether err was caused by an unparseable response body.
func IsParse(err error) bool {
	return kindOf(err) == ErrKindParse
}

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return kindOf(err) == ErrKindNotFound
}

// IsCanceled reports whether err was caused by a deadline or context
// cancellation.
func IsCanceled(err error) bool {
	return kindOf(err) == ErrKindCanceled
}

// IsStore reports whether err is a catalog persistence failure.
func IsStore(err error) bool {
	return kindOf(err) == ErrKindStore
}

// StatusOf extracts the HTTP status code from a protocol error in the
// chain. ok is false for every other kind of error.
func StatusOf(err error) (status int, ok bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == ErrKindProtocol {
		return e.Status, true
	}
	return 0, false
}

// kindOf extracts the ErrKind from any error in the chain.
func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
