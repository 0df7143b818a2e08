// Package errors defines the storefront's error vocabulary and its mapping
// onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Adapters wrap these so callers can test with errors.Is
// without depending on a concrete AppError.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrGone           = errors.New("gone")
	ErrLimitExceeded  = errors.New("limit exceeded")
	ErrRateLimited    = errors.New("rate limited")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrUpstream       = errors.New("upstream failure")
	ErrInternal       = errors.New("internal error")
)

// AppError is a structured error carrying a machine-readable code and the
// HTTP status it renders as.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(code string, status int, sentinel error, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: sentinel}
}

// NotFound creates a 404 error for the named resource.
func NotFound(resource, id string) *AppError {
	return newAppError("NOT_FOUND", http.StatusNotFound, ErrNotFound,
		fmt.Sprintf("%s with id %s not found", resource, id))
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return newAppError("INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput, message)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return newAppError("UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized, message)
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return newAppError("CONFLICT", http.StatusConflict, ErrConflict, message)
}

// Gone creates a 410 error, used for expired poll handles.
func Gone(message string) *AppError {
	return newAppError("GONE", http.StatusGone, ErrGone, message)
}

// LimitExceeded creates a 422 error for cart size and quantity caps.
func LimitExceeded(message string) *AppError {
	return newAppError("LIMIT_EXCEEDED", http.StatusUnprocessableEntity, ErrLimitExceeded, message)
}

// RateLimited creates a 429 error.
func RateLimited(message string) *AppError {
	return newAppError("RATE_LIMITED", http.StatusTooManyRequests, ErrRateLimited, message)
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	return newAppError("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail, message)
}

// Upstream creates a 502 error for a dependency that answered badly.
func Upstream(message string) *AppError {
	return newAppError("UPSTREAM_ERROR", http.StatusBadGateway, ErrUpstream, message)
}

// Internal creates a 500 error hiding the cause from the client.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrGone):
		return http.StatusGone
	case errors.Is(err, ErrLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
