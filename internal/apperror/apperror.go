package apperror

import (
	"errors"
	"net/http"
)

type Error struct {
	Code       string
	Message    string
	StatusCode int
	Internal   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Internal
}

var (
	ErrNotFound = &Error{
		Code:       "not_found",
		Message:    "The requested resource was not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &Error{
		Code:       "bad_request",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrJobNotCancelable = &Error{
		Code:       "job_not_cancelable",
		Message:    "Only pending jobs can be canceled",
		StatusCode: http.StatusConflict,
	}

	ErrUnknownJobType = &Error{
		Code:       "unknown_job_type",
		Message:    "This job type is not supported",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternal = &Error{
		Code:       "internal_error",
		Message:    "An unexpected error occurred. Please try again later",
		StatusCode: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &Error{
		Code:       "service_unavailable",
		Message:    "Service temporarily unavailable. Please try again later",
		StatusCode: http.StatusServiceUnavailable,
	}
)

// Wrap attaches an internal error to a known application error, preserving
// the public code, message, and status of base.
func Wrap(err error, base *Error) *Error {
	return &Error{
		Code:       base.Code,
		Message:    base.Message,
		StatusCode: base.StatusCode,
		Internal:   err,
	}
}

// WrapWithMessage builds an application error with a custom code and message.
func WrapWithMessage(err error, code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

// Is reports whether err carries the same public code as target.
func Is(err error, target *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}
