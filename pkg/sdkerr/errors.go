// Package sdkerr defines the classified errors returned by every SDK operation.
// An error is either a local validation failure, a failure reported by the
// engine, or a failure crossing the engine boundary.
package sdkerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by where it originated.
type Kind string

const (
	// KindValidation is a caller input rejected before anything reached the engine.
	KindValidation Kind = "validation"

	// KindRemote is an operation the engine executed and reported as failed.
	KindRemote Kind = "remote"

	// KindTransport covers encoding, engine invocation and decoding failures.
	KindTransport Kind = "transport"
)

// Code identifies a specific validation failure.
type Code string

// Validation codes for password generator parameters.
const (
	CodeInvalidLength           Code = "invalid_length"
	CodeNoCharacterSetEnabled   Code = "no_character_set_enabled"
	CodeNegativeMinimum         Code = "negative_minimum"
	CodeMinimumForDisabledClass Code = "minimum_for_disabled_class"
	CodeMinimumsExceedLength    Code = "minimums_exceed_length"
)

// Error is the concrete error type for SDK failures.
type Error struct {
	// Kind is the error classification.
	Kind Kind `json:"kind"`

	// Code is set for validation errors.
	Code Code `json:"code,omitempty"`

	// Field names the offending input, if any.
	Field string `json:"field,omitempty"`

	// Message is the human-readable message. For remote errors it is the
	// engine's message verbatim.
	Message string `json:"message"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Kind == KindRemote:
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind. A target with a code only
// matches errors carrying that code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// Sentinels for use with errors.Is.
var (
	ErrValidation              = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrInvalidLength           = &Error{Kind: KindValidation, Code: CodeInvalidLength, Message: "invalid length"}
	ErrNoCharacterSetEnabled   = &Error{Kind: KindValidation, Code: CodeNoCharacterSetEnabled, Message: "no character set enabled"}
	ErrNegativeMinimum         = &Error{Kind: KindValidation, Code: CodeNegativeMinimum, Message: "negative minimum"}
	ErrMinimumForDisabledClass = &Error{Kind: KindValidation, Code: CodeMinimumForDisabledClass, Message: "minimum for disabled class"}
	ErrMinimumsExceedLength    = &Error{Kind: KindValidation, Code: CodeMinimumsExceedLength, Message: "minimums exceed length"}
	ErrRemoteOperationFailed   = &Error{Kind: KindRemote, Message: "remote operation failed"}
	ErrTransport               = &Error{Kind: KindTransport, Message: "transport error"}
)

// Validation creates a validation error.
func Validation(code Code, field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    code,
		Field:   field,
		Message: message,
	}
}

// Remote creates an error carrying the engine's failure message.
func Remote(message string) *Error {
	return &Error{
		Kind:    KindRemote,
		Message: message,
	}
}

// Transport creates a transport error wrapping err.
func Transport(message string, err error) *Error {
	return &Error{
		Kind:    KindTransport,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation returns true if the error is a validation error.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsRemote returns true if the error was reported by the engine.
func IsRemote(err error) bool {
	return KindOf(err) == KindRemote
}

// IsTransport returns true if the error happened crossing the engine boundary.
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}
