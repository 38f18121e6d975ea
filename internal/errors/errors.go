package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	// Access codes
	ErrCodeInvalidCode         ErrorCode = "INVALID_CODE"
	ErrCodeCodeExpired         ErrorCode = "CODE_EXPIRED"
	ErrCodeNotScoped           ErrorCode = "NOT_SCOPED"
	ErrCodeSurveillanceDenied  ErrorCode = "SURVEILLANCE_DENIED"
	ErrCodeGenerationExhausted ErrorCode = "GENERATION_EXHAUSTED"
	ErrCodeAlreadyRevoked      ErrorCode = "ALREADY_REVOKED"

	// Delivery
	ErrCodeDeliveryFailed      ErrorCode = "DELIVERY_FAILED"
	ErrCodeEmailNotConfigured  ErrorCode = "EMAIL_NOT_CONFIGURED"
	ErrCodeUnsupportedDocument ErrorCode = "UNSUPPORTED_DOCUMENT"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeStorage  ErrorCode = "STORAGE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Public rejection message shared by every authorization failure on the client surface.
const rejectionMessage = "Code d'accès invalide ou non autorisé pour cette parcelle"

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

// InvalidCode covers both unknown and revoked codes; callers cannot tell them apart.
func InvalidCode() *AppError {
	return New(ErrCodeInvalidCode, rejectionMessage)
}

// CodeExpired carries is_expired in its details so the site can offer a renewal.
func CodeExpired() *AppError {
	return New(ErrCodeCodeExpired, "Ce code d'accès a expiré, veuillez demander un nouveau code").
		WithDetails(map[string]bool{"is_expired": true})
}

// NotScoped never lists the parcels the code does cover.
func NotScoped() *AppError {
	return New(ErrCodeNotScoped, rejectionMessage)
}

func SurveillanceDenied() *AppError {
	return New(ErrCodeSurveillanceDenied, "Accès à la surveillance non autorisé")
}

func GenerationExhausted(attempts int) *AppError {
	return New(ErrCodeGenerationExhausted, fmt.Sprintf("Could not generate a unique access code after %d attempts", attempts))
}

func AlreadyRevoked() *AppError {
	return New(ErrCodeAlreadyRevoked, "Access code is already revoked")
}

func DeliveryFailed(channel string, cause error) *AppError {
	return Wrap(ErrCodeDeliveryFailed, fmt.Sprintf("Échec de l'envoi via %s, veuillez réessayer", channel), cause)
}

func EmailNotConfigured() *AppError {
	return New(ErrCodeEmailNotConfigured, "Service email non configuré").
		WithDetails(map[string]bool{"requires_config": true})
}

func UnsupportedDocument(contentType string) *AppError {
	return New(ErrCodeUnsupportedDocument, fmt.Sprintf("Unsupported document format: %s", contentType))
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

func Storage(cause error) *AppError {
	return Wrap(ErrCodeStorage, "Document storage error", cause)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsAuthorizationFailure reports whether err is one of the terminal verification rejections.
func IsAuthorizationFailure(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidCode, ErrCodeCodeExpired, ErrCodeNotScoped, ErrCodeSurveillanceDenied:
		return true
	}
	return false
}
