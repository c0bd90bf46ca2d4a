package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrConflict
	ErrGateway
	ErrSecurity
	ErrInternal
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrConflict:
		return http.StatusConflict
	case ErrGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors
func NotFound(message string) *AppError {
	return &AppError{Code: ErrNotFound, Message: message}
}

func BadRequest(message string) *AppError {
	return &AppError{Code: ErrBadRequest, Message: message}
}

// Conflict signals a booking collision: the slot was taken between
// validation and commit.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrConflict, Message: message}
}

func Gateway(message string, err error) *AppError {
	return &AppError{Code: ErrGateway, Message: message, Err: err}
}

// Security marks a discarded event (e.g. a webhook with a bad signature).
// It is never surfaced to the sender.
func Security(message string) *AppError {
	return &AppError{Code: ErrSecurity, Message: message}
}

func Internal(err error) *AppError {
	return &AppError{Code: ErrInternal, Message: "internal server error", Err: err}
}

// Is reports whether err is an AppError carrying the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsConflict reports whether err is a booking conflict.
func IsConflict(err error) bool {
	return Is(err, ErrConflict)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return Is(err, ErrNotFound)
}
