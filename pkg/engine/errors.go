package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrClosed is returned by RunCommand after Close.
var ErrClosed = errors.New("engine is closed")

// ErrorClass classifies a failed command.
type ErrorClass string

const (
	// ErrorClassInvalidRequest is a command that did not decode or validate.
	ErrorClassInvalidRequest ErrorClass = "invalid_request"

	// ErrorClassUnauthenticated is a command issued without a logged-in session.
	ErrorClassUnauthenticated ErrorClass = "unauthenticated"

	// ErrorClassForbidden is a command outside the session's organization.
	ErrorClassForbidden ErrorClass = "forbidden"

	// ErrorClassNotFound is a missing secret, project or token.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassInternal is a storage or crypto failure.
	ErrorClassInternal ErrorClass = "internal"
)

// EngineError is a classified command failure. Its Message is what the
// caller sees in the response envelope.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	Class   ErrorClass `json:"class"`
	Message string     `json:"message"`

	// Resource is the ID the failure concerns, if any.
	Resource string `json:"resource,omitempty"`

	Err error `json:"-"`
}

// Error implements the error interface. The cause is not part of the
// message so storage and crypto details never reach callers.
func (e *EngineError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(id string) *EngineError {
	e.Resource = id
	return e
}

var (
	errNotAuthenticated = &EngineError{Class: ErrorClassUnauthenticated, Message: "Client is not authenticated"}
	errAccessDenied     = &EngineError{Class: ErrorClassForbidden, Message: "Access to the organization is denied"}
	errInvalidToken     = &EngineError{Class: ErrorClassUnauthenticated, Message: "Access token is not in a valid format"}
	errTokenRejected    = &EngineError{Class: ErrorClassUnauthenticated, Message: "Access token is invalid or expired"}
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassInvalidRequest, Message: message, Err: err}
}

// NewNotFoundError creates a not found error for the named resource kind.
func NewNotFoundError(kind, id string) *EngineError {
	return &EngineError{Class: ErrorClassNotFound, Message: kind + " not found", Resource: id}
}

// NewInternalError creates an internal error. Only message is reported to callers.
func NewInternalError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassInternal, Message: message, Err: err}
}

// ClassOf returns the class of err, or "" if it is not an EngineError.
func ClassOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsNotFound returns true if the error is classified as not found.
func IsNotFound(err error) bool {
	return ClassOf(err) == ErrorClassNotFound
}

// validationError turns validator output into an invalid request error
// naming the first offending wire field.
func validationError(err error) *EngineError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewInvalidRequestError("invalid request", err)
	}

	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "min":
		msg = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	return &EngineError{Class: ErrorClassInvalidRequest, Message: msg, Err: err}
}

// jsonFieldName reports struct fields by their wire name.
func jsonFieldName(tag string) string {
	name := strings.SplitN(tag, ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}
