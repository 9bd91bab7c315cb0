// Package service holds the business rules. It depends only on the
// repository interfaces, so every storage backend behaves the same way.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/instalitre/internal/apperror"
	"github.com/sakif/instalitre/internal/auth"
	"github.com/sakif/instalitre/internal/metrics"
	"github.com/sakif/instalitre/internal/model"
	"github.com/sakif/instalitre/internal/repository"
)

// IdentityService registers and authenticates users.
type IdentityService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewIdentityService wires an IdentityService. m may be nil.
func NewIdentityService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		users:     users,
		passwords: passwords,
		metrics:   m,
		logger:    logger,
	}
}

// Register creates an account and returns its id.
//
// Usernames are stored and compared exactly as given. A username with
// leading or trailing whitespace is rejected rather than normalized. The
// password is hashed as given.
func (s *IdentityService) Register(ctx context.Context, username, password string) (id string, err error) {
	defer func() { s.metrics.Registration(err) }()

	if strings.TrimSpace(username) == "" {
		return "", apperror.EmptyInput("username")
	}
	if strings.TrimSpace(username) != username {
		return "", apperror.ValidationFailed("username",
			"username must not begin or end with whitespace")
	}
	if password == "" {
		return "", apperror.EmptyInput("password")
	}

	// Fast path for the common duplicate. The unique index still decides
	// when two registrations race past this check.
	_, err = s.users.FindUserByUsername(ctx, username)
	switch {
	case err == nil:
		return "", apperror.UsernameTaken(username)
	case !errors.Is(err, apperror.ErrUserNotFound):
		return "", fmt.Errorf("service/identity: checking username: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", apperror.ValidationFailed("password",
				fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
		}
		return "", fmt.Errorf("service/identity: %w", err)
	}

	user := &model.User{Username: username, PasswordHash: hash}
	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrUsernameTaken) {
			s.logger.Info("registration lost username race", slog.String("username", username))
			return "", err
		}
		s.logger.Error("failed to insert user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("service/identity: inserting user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", username),
	)
	return user.ID, nil
}

// Authenticate checks a username/password pair and returns the user id.
// The username must match a stored one exactly.
// An unknown username yields apperror.ErrUserNotFound and a wrong password
// apperror.ErrInvalidCredentials.
func (s *IdentityService) Authenticate(ctx context.Context, username, password string) (id string, err error) {
	defer func() { s.metrics.Login(err) }()

	if strings.TrimSpace(username) == "" {
		return "", apperror.EmptyInput("username")
	}
	if password == "" {
		return "", apperror.EmptyInput("password")
	}

	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			return "", err
		}
		return "", fmt.Errorf("service/identity: finding user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("authentication failed",
				slog.String("userID", user.ID),
				slog.String("reason", "password mismatch"),
			)
			return "", apperror.InvalidCredentials()
		}
		s.logger.Error("stored password hash is unusable",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("service/identity: verifying password: %w", err)
	}

	s.logger.Info("user authenticated", slog.String("userID", user.ID))
	return user.ID, nil
}

// GetUser returns the user with the given id.
func (s *IdentityService) GetUser(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.EmptyInput("user id")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/identity: fetching user %s: %w", id, err)
	}
	return user, nil
}
