package apperror

import (
	"errors"
	"fmt"
)

// Generic kinds. HTTP handlers map these to status codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("unavailable")
)

// Domain kinds. Each wraps one generic kind, so errors.Is matches both.
var (
	ErrUsernameTaken      = fmt.Errorf("username taken: %w", ErrConflict)
	ErrUserNotFound       = fmt.Errorf("user not found: %w", ErrNotFound)
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	ErrEmptyInput         = fmt.Errorf("empty input: %w", ErrValidation)
	ErrImageDecode        = fmt.Errorf("image decode: %w", ErrValidation)
	ErrEmptyCaption       = fmt.Errorf("empty caption: %w", ErrValidation)
	ErrStoreUnavailable   = fmt.Errorf("store unavailable: %w", ErrUnavailable)
)

type AppError struct {
	Err     error  // kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, for logs only
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// UsernameTaken reports that another account already owns username.
func UsernameTaken(username string) *AppError {
	return &AppError{
		Err:     ErrUsernameTaken,
		Message: fmt.Sprintf("username %q is already taken", username),
		Field:   "username",
	}
}

// UserNotFound is returned for an unknown username or user id.
func UserNotFound(ref string) *AppError {
	return &AppError{
		Err:     ErrUserNotFound,
		Message: fmt.Sprintf("user %s not found", ref),
	}
}

func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "incorrect password",
		Field:   "password",
	}
}

// EmptyInput reports a required field that was left blank.
func EmptyInput(field string) *AppError {
	return &AppError{
		Err:     ErrEmptyInput,
		Message: fmt.Sprintf("%s must not be empty", field),
		Field:   field,
	}
}

func EmptyCaption() *AppError {
	return &AppError{
		Err:     ErrEmptyCaption,
		Message: "caption must not be empty",
		Field:   "caption",
	}
}

// ImageDecode wraps a decoder failure. The cause stays out of Message.
func ImageDecode(cause error) *AppError {
	return &AppError{
		Err:     ErrImageDecode,
		Message: "image could not be decoded",
		Field:   "image",
		Cause:   cause,
	}
}

// StoreUnavailable wraps a connectivity or timeout failure of the backing
// store. op names the repository operation that failed.
func StoreUnavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStoreUnavailable,
		Message: fmt.Sprintf("storage unavailable during %s", op),
		Cause:   cause,
	}
}
