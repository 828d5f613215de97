// Package apperr defines the error taxonomy surfaced by the pipeline:
// validation, not-found, upstream, and persistence failures, each with a
// stable machine-readable code for API clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind buckets an error for propagation policy and HTTP mapping.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindUpstream
	KindPersistence
)

// Error carries a kind, a stable code, and a human-readable message
// naming the violated constraint.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Validation creates a client error for bad shape or bounds.
func Validation(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a client error for an absent or unowned entity.
func NotFound(code, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps a failure from an external collaborator.
func Upstream(code string, cause error, format string, args ...any) *Error {
	return &Error{Kind: KindUpstream, Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Persistence wraps a store failure.
func Persistence(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindPersistence, Code: "store_failure", Message: fmt.Sprintf(format, args...), cause: cause}
}

// As extracts an *Error from an error chain, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of an error, KindUnknown for untyped errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status code the API surfaces.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the stable code, or "internal_error" for untyped errors.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return "internal_error"
}
