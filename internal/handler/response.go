package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError so the API has one
// JSON shape for data and one for failures:
//
//	{"error": "username_taken", "message": "username \"alice\" is already taken"}
//
// The "error" field is machine readable and stable; "message" is for people.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/instalitre/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "username_taken")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Offending input field, when known
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be set before the body is written.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps an error to its HTTP status and machine-readable type.
//
// The specific kinds are checked before the generic ones they wrap, since
// errors.Is matches both levels.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrUsernameTaken):
		return http.StatusConflict, "username_taken"
	case errors.Is(err, apperror.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, apperror.ErrEmptyInput):
		return http.StatusBadRequest, "empty_input"
	case errors.Is(err, apperror.ErrEmptyCaption):
		return http.StatusBadRequest, "empty_caption"
	case errors.Is(err, apperror.ErrImageDecode):
		return http.StatusUnprocessableEntity, "invalid_image"
	case errors.Is(err, apperror.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// Only AppError messages reach the client. Anything else, including the
// Cause inside an AppError, may hold SQL or driver text and becomes a
// generic 500 message.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := errorStatus(err)
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// writeErrorWithStatus is writeError with the status forced. Login uses it
// to answer 401 for an unknown username.
func writeErrorWithStatus(w http.ResponseWriter, status int, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeError(w, err)
		return
	}
	_, errorType := errorStatus(err)
	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// writeTooLarge answers 413 for a body that hit its http.MaxBytesReader cap.
func writeTooLarge(w http.ResponseWriter, limit int64) {
	writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
		Error:   "too_large",
		Message: "request body exceeds " + strconv.FormatInt(limit, 10) + " bytes",
	})
}
