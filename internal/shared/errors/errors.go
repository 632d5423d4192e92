package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types
var (
	ErrNotFound            = errors.New("resource not found")
	ErrBadRequest          = errors.New("bad request")
	ErrInternal            = errors.New("internal error")
	ErrValidation          = errors.New("validation error")
	ErrUnsupportedCategory = errors.New("unsupported category")
	ErrUnknownCondition    = errors.New("unknown condition")
	ErrQuery               = errors.New("query failed")
	ErrUpstream            = errors.New("upstream unavailable")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
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

// NotFound creates a not found error
func NotFound(resource string, id string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

// Validation creates a validation error with field details
func Validation(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// UnsupportedCategory is returned when the disease category is outside the known set.
func UnsupportedCategory(category string) *AppError {
	return &AppError{
		Err:        ErrUnsupportedCategory,
		Message:    "Invalid disease type",
		Code:       "UNSUPPORTED_CATEGORY",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]string{"diseaseType": category},
	}
}

// UnknownCondition is returned when a category has no primary table for the condition.
func UnknownCondition(category, condition string) *AppError {
	return &AppError{
		Err:        ErrUnknownCondition,
		Message:    fmt.Sprintf("No data table for %s condition", category),
		Code:       "UNKNOWN_CONDITION",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]string{"diseaseType": category, "specificType": condition},
	}
}

// QueryError hides the storage cause from clients. The cause stays
// reachable through Unwrap for logging.
func QueryError(err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrQuery, err),
		Message:    "Database error",
		Code:       "QUERY_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Upstream creates an error for a failing external service.
func Upstream(service string, err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrUpstream, err),
		Message:    fmt.Sprintf("%s unavailable", service),
		Code:       "UPSTREAM_ERROR",
		HTTPStatus: http.StatusBadGateway,
	}
}

// Internal creates an internal error
func Internal(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	if appErr, ok := err.(*AppError); ok {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// As returns err as an *AppError, wrapping unknown errors as Internal.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
