// Package errors defines the AppError every service returns across the HTTP
// boundary. Each constructor fixes the code and status pair.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeTimeout      = "TIMEOUT"
	CodeInvalidInput = "INVALID_INPUT"
	CodeInvalidRule  = "INVALID_RULE"
	CodeRegeneration = "REGENERATION_FAILED"
	CodeRateLimited  = "RATE_LIMITED"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

// WithDetails replaces the details and returns e.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func newError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func NotFoundWithID(resource, id string) *AppError {
	return newError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetails(map[string]any{"resource": resource, "id": id})
}

func Validation(message string, details map[string]any) *AppError {
	return newError(CodeValidation, http.StatusUnprocessableEntity, message).WithDetails(details)
}

func InvalidInput(message string) *AppError {
	return newError(CodeInvalidInput, http.StatusBadRequest, message)
}

// Conflict reports a write that collides with the schedule or with the
// current state of a booking.
func Conflict(message string) *AppError {
	return newError(CodeConflict, http.StatusConflict, message)
}

func Internal(message string, err error) *AppError {
	e := newError(CodeInternal, http.StatusInternalServerError, message)
	e.Err = err
	return e
}

// InvalidRule reports a recurrence rule that cannot be parsed or expanded.
func InvalidRule(message string, details map[string]any) *AppError {
	return newError(CodeInvalidRule, http.StatusUnprocessableEntity, message).WithDetails(details)
}

// RegenerationFailed reports a schedule that could not be rebuilt. The write
// that triggered it has been rolled back, so the client may retry.
func RegenerationFailed(message string, err error) *AppError {
	e := newError(CodeRegeneration, http.StatusServiceUnavailable, message)
	e.Err = err
	return e
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError finds the AppError in err's chain. Anything else becomes an
// INTERNAL_ERROR that keeps err as its cause.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
