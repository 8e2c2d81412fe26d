// Package apperr defines the coded errors shared by the record store, the resource layer and the HTTP API.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeAuthRequired = "AUTH_REQUIRED"
	CodeTimeout      = "TIMEOUT"
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidInput = "INVALID_INPUT"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL"
)

// Error carries a machine-readable code next to a human message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrAuthRequired = &Error{Code: CodeAuthRequired, Message: "authentication required"}
	ErrTimeout      = &Error{Code: CodeTimeout, Message: "request timed out"}
	ErrNotFound     = &Error{Code: CodeNotFound, Message: "record not found"}
)

func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code to an underlying error.
func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Invalid(err error) *Error {
	return &Error{Code: CodeInvalidInput, Message: err.Error(), Err: err}
}

func IsAuthRequired(err error) bool { return errors.Is(err, ErrAuthRequired) }
func IsTimeout(err error) bool      { return errors.Is(err, ErrTimeout) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }

// Code extracts the code of the outermost *Error in the chain, or CodeInternal.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error onto the status the API answers with.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeAuthRequired:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
