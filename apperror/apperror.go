// Package apperror defines a centralized system for application-specific errors.
// Every service returns *AppError values so the HTTP layer can map each failure
// category to one status code and one response body shape, similar in concept
// to an Exception Filter in Nest.js.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType is an enumeration (using `iota`) of application error categories.
type ErrorType int

const (
	// UnknownError is for unspecified errors
	UnknownError ErrorType = iota
	// DatabaseError represents an error originating from the database
	DatabaseError
	// ConfigError represents a deployment misconfiguration, e.g. a missing default role
	ConfigError
	// AuthError represents an authentication error (invalid credentials, missing token)
	AuthError
	// UnauthorizedError represents an authorization error (authenticated but lacking a role)
	UnauthorizedError
	// NotFoundError represents a resource not found error
	NotFoundError
	// ValidationError represents an input validation error
	ValidationError
	// BadRequestError represents a generic bad request, e.g. a malformed JSON body
	BadRequestError
	// PasswordMismatchError is returned when password and confirmation differ
	PasswordMismatchError
	// InvalidTokenError represents an unknown or expired password reset token
	InvalidTokenError
	// InternalError represents a generic internal server error
	InternalError
	// ExternalServiceError represents an error from an external service, e.g. the SMTP relay
	ExternalServiceError
	// MigrationError represents an error during database migrations
	MigrationError
	// ConflictError represents a conflict, e.g. the username is already taken
	ConflictError
)

var typeNames = map[ErrorType]string{
	UnknownError:          "UNKNOWN",
	DatabaseError:         "DATABASE",
	ConfigError:           "CONFIG",
	AuthError:             "AUTH",
	UnauthorizedError:     "UNAUTHORIZED",
	NotFoundError:         "NOT_FOUND",
	ValidationError:       "VALIDATION",
	BadRequestError:       "BAD_REQUEST",
	PasswordMismatchError: "PASSWORD_MISMATCH",
	InvalidTokenError:     "INVALID_TOKEN",
	InternalError:         "INTERNAL",
	ExternalServiceError:  "EXTERNAL_SERVICE",
	MigrationError:        "MIGRATION",
	ConflictError:         "CONFLICT",
}

// String returns a stable identifier used in logs and metrics labels.
func (t ErrorType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return typeNames[UnknownError]
}

// AppError is a custom error type for the application.
// Message is safe to show to API clients; Err carries the underlying cause for logs only.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error // Underlying error
}

// Error returns the string representation of the error, satisfying the `error` interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error so `errors.Is` and `errors.As` can walk the chain.
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code appropriate for the error type
func (e *AppError) StatusCode() int {
	switch e.Type {
	case DatabaseError, ConfigError, InternalError, MigrationError:
		return http.StatusInternalServerError
	case AuthError:
		return http.StatusUnauthorized
	case UnauthorizedError:
		// 401 means "who are you?", 403 means "I know who you are, and no".
		return http.StatusForbidden
	case NotFoundError:
		return http.StatusNotFound
	case ValidationError, BadRequestError, PasswordMismatchError, InvalidTokenError:
		return http.StatusBadRequest
	case ExternalServiceError:
		return http.StatusBadGateway
	case ConflictError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError creates a new AppError. Prefer the typed constructors below.
func NewAppError(errType ErrorType, message string, underlyingError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     underlyingError,
	}
}

// NewDatabaseError creates a new DatabaseError
func NewDatabaseError(message string, underlyingError error) *AppError {
	return NewAppError(DatabaseError, message, underlyingError)
}

// NewConfigError creates a new ConfigError
func NewConfigError(message string, underlyingError error) *AppError {
	return NewAppError(ConfigError, message, underlyingError)
}

// NewAuthError creates a new AuthError (for authentication issues)
func NewAuthError(message string, underlyingError error) *AppError {
	return NewAppError(AuthError, message, underlyingError)
}

// NewUnauthorizedError creates a new UnauthorizedError (for authorization issues)
func NewUnauthorizedError(message string, underlyingError error) *AppError {
	return NewAppError(UnauthorizedError, message, underlyingError)
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(message string, underlyingError error) *AppError {
	return NewAppError(NotFoundError, message, underlyingError)
}

// NewValidationError creates a new ValidationError
func NewValidationError(message string, underlyingError error) *AppError {
	return NewAppError(ValidationError, message, underlyingError)
}

// NewBadRequestError creates a new BadRequestError
func NewBadRequestError(message string, underlyingError error) *AppError {
	return NewAppError(BadRequestError, message, underlyingError)
}

// NewPasswordMismatchError creates a new PasswordMismatchError
func NewPasswordMismatchError(message string) *AppError {
	return NewAppError(PasswordMismatchError, message, nil)
}

// NewInvalidTokenError creates a new InvalidTokenError
func NewInvalidTokenError(message string, underlyingError error) *AppError {
	return NewAppError(InvalidTokenError, message, underlyingError)
}

// NewInternalError creates a new InternalError
func NewInternalError(message string, underlyingError error) *AppError {
	return NewAppError(InternalError, message, underlyingError)
}

// NewExternalServiceError creates a new ExternalServiceError
func NewExternalServiceError(message string, underlyingError error) *AppError {
	return NewAppError(ExternalServiceError, message, underlyingError)
}

// NewMigrationError creates a new MigrationError
func NewMigrationError(message string, underlyingError error) *AppError {
	return NewAppError(MigrationError, message, underlyingError)
}

// NewConflictError creates a new ConflictError
func NewConflictError(message string, underlyingError error) *AppError {
	return NewAppError(ConflictError, message, underlyingError)
}

// ErrorResponse represents the error payload returned to API clients.
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp" example:"2024-01-02T15:04:05Z"`
	Status    int       `json:"status" example:"400"`
	Error     string    `json:"error" example:"Bad Request"`
	Message   string    `json:"message" example:"A description of the error"`
	Path      string    `json:"path" example:"/auth/register"`
}

// ToResponse converts an AppError to an ErrorResponse for the given request path.
// Only the user-facing Message is exposed, never the underlying Err.
func (e *AppError) ToResponse(path string, now time.Time) ErrorResponse {
	status := e.StatusCode()
	return ErrorResponse{
		Timestamp: now.UTC(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   e.Message,
		Path:      path,
	}
}

// FromError finds the first *AppError in err's chain.
func FromError(err error) (*AppError, bool) {
	if err == nil {
		return nil, false
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func isType(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

// IsNotFound checks if an error is a NotFound error
func IsNotFound(err error) bool { return isType(err, NotFoundError) }

// IsAuthError checks if an error is an AuthError (authentication problem)
func IsAuthError(err error) bool { return isType(err, AuthError) }

// IsUnauthorizedError checks if an error is an UnauthorizedError (authorization problem)
func IsUnauthorizedError(err error) bool { return isType(err, UnauthorizedError) }

// IsValidationError checks if an error is a Validation error
func IsValidationError(err error) bool { return isType(err, ValidationError) }

// IsConflictError checks if an error is a Conflict error
func IsConflictError(err error) bool { return isType(err, ConflictError) }

// IsPasswordMismatch checks if an error is a PasswordMismatch error
func IsPasswordMismatch(err error) bool { return isType(err, PasswordMismatchError) }

// IsInvalidToken checks if an error is an InvalidToken error
func IsInvalidToken(err error) bool { return isType(err, InvalidTokenError) }

// IsConfigError checks if an error is a Config error
func IsConfigError(err error) bool { return isType(err, ConfigError) }

// IsExternalServiceError checks if an error is an ExternalService error
func IsExternalServiceError(err error) bool { return isType(err, ExternalServiceError) }
