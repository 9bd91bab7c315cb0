package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/sakif/instalitre/internal/apperror"
	"github.com/sakif/instalitre/internal/auth"
	"github.com/sakif/instalitre/internal/model"
)

// IdentityService is what AuthHandler needs from the identity store.
// *service.IdentityService satisfies it.
type IdentityService interface {
	Register(ctx context.Context, username, password string) (string, error)
	Authenticate(ctx context.Context, username, password string) (string, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// AuthHandler manages registration, login and session cookies.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account
//   - HandleLogin    → check credentials, issue the JWT cookie
//   - HandleLogout   → clear the JWT cookie
//   - HandleMe       → return the currently logged-in user's profile
type AuthHandler struct {
	identity     IdentityService
	tokens       *auth.TokenService
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secureCookie sets the Secure flag
// on the session cookie and should be true behind HTTPS.
func NewAuthHandler(
	identity IdentityService,
	tokens *auth.TokenService,
	secureCookie bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		identity:     identity,
		tokens:       tokens,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// credentials is the body of register and login requests. Both JSON and
// urlencoded form bodies are accepted.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// maxCredentialsBytes caps register and login bodies.
const maxCredentialsBytes = 64 << 10

// decodeCredentials reads a JSON or form body. An oversized body yields the
// *http.MaxBytesError unchanged so the caller can answer 413.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var c credentials
	r.Body = http.MaxBytesReader(w, r.Body, maxCredentialsBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			if isTooLarge(err) {
				return c, err
			}
			return c, apperror.ValidationFailed("body", "invalid JSON body")
		}
		return c, nil
	}

	if err := r.ParseForm(); err != nil {
		if isTooLarge(err) {
			return c, err
		}
		return c, apperror.ValidationFailed("body", "invalid form body")
	}
	c.Username = r.PostForm.Get("username")
	c.Password = r.PostForm.Get("password")
	return c, nil
}

// HandleRegister creates a new account.
//
// HTTP: POST /api/register
// Body: {"username": "...", "password": "..."}
// Returns: 201 {"id": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(w, r)
	if err != nil {
		if isTooLarge(err) {
			writeTooLarge(w, maxCredentialsBytes)
			return
		}
		writeError(w, err)
		return
	}

	id, err := h.identity.Register(r.Context(), creds.Username, creds.Password)
	if err != nil {
		h.logOnServerError("register", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// HandleLogin checks the credentials and sets the session cookie.
//
// HTTP: POST /api/login
// Returns: 200 {"id": "...", "username": "..."}
//
// An unknown username and a wrong password both answer 401, with distinct
// error types ("user_not_found", "invalid_credentials").
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(w, r)
	if err != nil {
		if isTooLarge(err) {
			writeTooLarge(w, maxCredentialsBytes)
			return
		}
		writeError(w, err)
		return
	}

	id, err := h.identity.Authenticate(r.Context(), creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			writeErrorWithStatus(w, http.StatusUnauthorized, err)
			return
		}
		h.logOnServerError("login", err)
		writeError(w, err)
		return
	}

	token, err := h.tokens.Generate(id)
	if err != nil {
		h.logger.Error("login: token generation failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	auth.SetSessionCookie(w, token, h.tokens.TTL(), h.secureCookie)

	user, err := h.identity.GetUser(r.Context(), id)
	if err != nil {
		// The cookie is already valid; fall back to the name that was typed.
		h.logger.Warn("login: profile lookup failed",
			slog.String("userID", id),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusOK, loginResponse{ID: id, Username: creds.Username})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{ID: user.ID, Username: user.Username})
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /api/logout
//
// Tokens are stateless, so the token stays valid until it expires; without
// the cookie the browser simply stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secureCookie)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "valid authentication required",
		})
		return
	}

	user, err := h.identity.GetUser(r.Context(), userID)
	if err != nil {
		h.logger.Warn("HandleMe: user lookup failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// logOnServerError logs failures that map to a 5xx response. Client errors
// are already logged by the request logger.
func (h *AuthHandler) logOnServerError(op string, err error) {
	if status, _ := errorStatus(err); status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.String("error", err.Error()))
	}
}
