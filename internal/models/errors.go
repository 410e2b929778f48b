package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced to API clients.
const (
	CodeSelfRelationship      = "SELF_RELATIONSHIP"
	CodeDuplicateRelationship = "DUPLICATE_RELATIONSHIP"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeNotFound              = "NOT_FOUND"
	CodeForbidden             = "FORBIDDEN"
	CodeValidation            = "VALIDATION_ERROR"
	CodeConflict              = "CONFLICT"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeDirectoryExhausted    = "DIRECTORY_EXHAUSTED"
	CodeInternal              = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrSelfRelationship      = &AppError{Code: CodeSelfRelationship, Message: "cannot form a relationship with yourself"}
	ErrDuplicateRelationship = &AppError{Code: CodeDuplicateRelationship, Message: "a relationship already exists between these users"}
	ErrInvalidTransition     = &AppError{Code: CodeInvalidTransition, Message: "invalid relationship transition"}
	ErrNotFound              = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrForbidden             = &AppError{Code: CodeForbidden, Message: "forbidden"}
	ErrDirectoryExhausted    = &AppError{Code: CodeDirectoryExhausted, Message: "could not allocate a unique handle"}
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
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

// Is reports whether target is an AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

func NewInvalidTransitionError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: message,
	}
}

func NewSelfRelationshipError() *AppError {
	return &AppError{
		Code:    CodeSelfRelationship,
		Message: ErrSelfRelationship.Message,
	}
}

func NewDuplicateRelationshipError() *AppError {
	return &AppError{
		Code:    CodeDuplicateRelationship,
		Message: ErrDuplicateRelationship.Message,
	}
}

func NewDirectoryExhaustedError(attempts int) *AppError {
	return &AppError{
		Code:    CodeDirectoryExhausted,
		Message: fmt.Sprintf("could not allocate a unique handle after %d attempts", attempts),
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// StatusFor maps an error to the HTTP status it should be rendered with.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeSelfRelationship, CodeValidation:
		return fiber.StatusBadRequest
	case CodeDuplicateRelationship, CodeConflict, CodeInvalidTransition:
		return fiber.StatusConflict
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeDirectoryExhausted:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		// internal causes stay in the logs
		if appErr.Err != nil && appErr.Code != CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}

// RespondWithAppError renders err with the status StatusFor picks.
func RespondWithAppError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, StatusFor(err), err)
}
