package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies one outcome of the error taxonomy.
type ErrorCode int

const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrMissingField
	ErrInvalidInterval
	ErrSchedulingConflict
	ErrReferenceNotFound
	ErrUnauthorized
	ErrForbidden
	ErrNoOp
	ErrInternal
)

// AppError is a typed, expected outcome returned to the caller. Field and
// ConflictRecord carry enough detail for the caller to correct the request;
// nothing is retried internally.
type AppError struct {
	Code           ErrorCode `json:"code"`
	Message        string    `json:"message"`
	Field          string    `json:"field,omitempty"`
	ConflictRecord string    `json:"conflict_record,omitempty"`
	Err            error     `json:"-"`
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

// StatusCode maps the taxonomy onto transport status codes. The error
// middleware picks this up via the StatusCode() interface check.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound, ErrReferenceNotFound:
		return http.StatusNotFound
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrSchedulingConflict:
		return http.StatusConflict
	case ErrBadRequest, ErrMissingField, ErrInvalidInterval, ErrNoOp:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
	}
}

func MissingField(field string) *AppError {
	return &AppError{
		Code:    ErrMissingField,
		Message: fmt.Sprintf("%s is required", field),
		Field:   field,
	}
}

func InvalidInterval() *AppError {
	return &AppError{
		Code:    ErrInvalidInterval,
		Message: "end time must be after start time",
	}
}

func SchedulingConflict(conflictRecord string) *AppError {
	return &AppError{
		Code:           ErrSchedulingConflict,
		Message:        "doctor has a conflicting appointment at this time",
		ConflictRecord: conflictRecord,
	}
}

func ReferenceNotFound(resource string) *AppError {
	return &AppError{
		Code:    ErrReferenceNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Field:   resource,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: message,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func NoOp() *AppError {
	return &AppError{
		Code:    ErrNoOp,
		Message: "no data provided for update",
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Code extracts the taxonomy code from any error chain; ErrInternal for
// everything that is not an AppError.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given taxonomy code.
func Is(err error, code ErrorCode) bool {
	return Code(err) == code
}
