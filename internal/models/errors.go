package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned to clients in the "error" field.
const (
	CodeMissing         = "missing"
	CodeInvalid         = "invalid"
	CodeInvalidEmail    = "invalidEmail"
	CodeWeakPassword    = "weakPassword"
	CodeExists          = "exists"
	CodeServer          = "server"
	CodeNotFound        = "notFound"
	CodeUnauthenticated = "unauthenticated"
	CodeAPIUnavailable  = "apiUnavailable"
	CodeAPIUnauthorized = "apiUnauthorized"
	CodeRateLimited     = "rateLimited"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
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

// Is matches another AppError by code so errors.Is works against the sentinels below.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Status == e.Status
}

// Predefined error constructors
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  fiber.StatusBadRequest,
	}
}

func NewMissingError(field string) *AppError {
	return NewValidationError(CodeMissing, fmt.Sprintf("%s is required", field))
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeExists,
		Message: message,
		Status:  fiber.StatusConflict,
	}
}

func NewUnauthorizedError(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  fiber.StatusUnauthorized,
	}
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
		Status:  fiber.StatusNotFound,
	}
}

func NewUpstreamError(code string, err error) *AppError {
	message := "Upstream data provider unavailable"
	if code == CodeAPIUnauthorized {
		message = "Upstream data provider rejected the credentials"
	}
	return &AppError{
		Code:    code,
		Message: message,
		Status:  fiber.StatusBadGateway,
		Err:     err,
	}
}

func NewRateLimitError() *AppError {
	return &AppError{
		Code:    CodeRateLimited,
		Message: "Too many requests",
		Status:  fiber.StatusTooManyRequests,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeServer,
		Message: "Internal server error",
		Status:  fiber.StatusInternalServerError,
		Err:     err,
	}
}

// AsAppError unwraps err into an AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err)
}

// RespondWithError creates a standardized error response. A zero status falls back
// to the status carried by the AppError.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	appErr := AsAppError(err)
	if status == 0 {
		status = appErr.Status
	}
	if status == 0 {
		status = fiber.StatusInternalServerError
	}

	// Wrapped causes stay server side.
	return c.Status(status).JSON(ErrorResponse{
		OK:      false,
		Error:   appErr.Code,
		Message: appErr.Message,
	})
}
