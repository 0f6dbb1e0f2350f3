// Package apperr holds the error taxonomy shared by the carpool services.
// Handlers map these errors onto HTTP responses; everything else is treated
// as an internal failure.
package apperr

import "errors"

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
)

// Error is an application-layer error that can be mapped to a response.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func InvalidArgument(msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: msg}
}

// InvalidField reports a boundary validation failure on a single field.
func InvalidField(field, reason string) *Error {
	return &Error{
		Code:    CodeInvalidArgument,
		Message: "invalid " + field,
		Details: map[string]any{field: reason},
	}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func IsInvalidArgument(err error) bool { return hasCode(err, CodeInvalidArgument) }

func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

func hasCode(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
