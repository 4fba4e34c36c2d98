package errors

import (
	"errors"
	"fmt"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeBusiness   ErrorType = "business"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeTransport  ErrorType = "transport"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeParsing    ErrorType = "parsing"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewBusinessError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeBusiness,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

// NewTransportError marks connectivity and timeout failures against the tax
// authority. Callers may retry these.
func NewTransportError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeTransport,
		Code:       "SII_TRANSPORT",
		Message:    message,
		Retryable:  true,
		StatusCode: 502,
	}
}

// NewAuthRejectedError marks a rejected seed or signature. Not retryable
// without obtaining a fresh seed.
func NewAuthRejectedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAuth,
		Code:       "SII_AUTH_REJECTED",
		Message:    message,
		Retryable:  false,
		StatusCode: 401,
	}
}

// NewSIIParsingError marks an authority response that could not be decoded.
// The raw payload travels in Details for investigation; never retried blindly.
func NewSIIParsingError(message string, rawPayload string) *AppError {
	return &AppError{
		Type:       ErrorTypeParsing,
		Code:       "SII_PARSING",
		Message:    message,
		Retryable:  false,
		StatusCode: 502,
		Details:    map[string]interface{}{"raw_payload": rawPayload},
	}
}

// NewCafConflictError marks overlapping folio authorization ranges. Fatal
// data-integrity fault; blocks issuance until resolved by an operator.
func NewCafConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       "CAF_CONFLICT",
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

// NewDuplicateDocumentError marks a (type, folio, issuer) collision.
func NewDuplicateDocumentError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       "DUPLICATE_DOCUMENT",
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

// Predefined common errors
var (
	ErrInvalidInput     = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrDocumentNotFound = NewNotFoundError("document")
	ErrCafNotFound      = NewNotFoundError("caf")
	ErrCompanyNotFound  = NewNotFoundError("company")
	ErrTokenExpired     = NewAuthRejectedError("SII token has expired")
)

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsCode checks if an error carries a specific application code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
