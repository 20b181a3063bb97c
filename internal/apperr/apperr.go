// Package apperr defines the failure taxonomy shared by the repositories,
// the validation pipeline and the HTTP error layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The HTTP layer switches on it to pick the
// status code and the public message.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidID
	KindSchema
	KindValidation
	KindNotFound
	KindUnavailable
	KindRouteNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidID:
		return "invalid_id"
	case KindSchema:
		return "schema"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindRouteNotFound:
		return "route_not_found"
	default:
		return "internal"
	}
}

// FieldError is a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the tagged failure carried from storage and validation up to the
// HTTP boundary.
type Error struct {
	Kind    Kind
	Message string
	Details []FieldError
	// Status is only consulted for KindInternal.
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidID reports an identifier that is not in the datastore's native format.
func InvalidID(err error) *Error {
	return &Error{Kind: KindInvalidID, Message: "Invalid ID format", Err: err}
}

// Schema reports stored-record constraint violations.
func Schema(details []FieldError) *Error {
	return &Error{Kind: KindSchema, Message: "Model validation failed", Details: details}
}

// Validation reports request input rejected by the validation pipeline.
func Validation(details []FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed", Details: details}
}

// NotFound reports a missing record of the named resource, e.g. "Task".
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Unavailable reports that the datastore cannot serve requests.
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: "Database not connected", Err: err}
}

// RouteNotFound reports a request that matched no route.
func RouteNotFound() *Error {
	return &Error{Kind: KindRouteNotFound, Message: "Route not found"}
}

// WithStatus builds an internal error that carries its own status and message.
func WithStatus(status int, message string, err error) *Error {
	return &Error{Kind: KindInternal, Status: status, Message: message, Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
