package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/rs/xid"

	"github.com/sakif/instalitre/internal/apperror"
	"github.com/sakif/instalitre/internal/model"
)

var userColumns = []string{"id", "username", "password_hash", "created_at"}

// InsertUser creates a user; the users_username_key constraint turns a
// duplicate into apperror.ErrUsernameTaken.
func (s *Store) InsertUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query, args, err := psql.Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.Username, user.PasswordHash, user.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: building insert query: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		if pgCode(err) == codeUniqueViolation {
			return apperror.UsernameTaken(user.Username)
		}
		return classify("inserting user", err)
	}
	return nil
}

// FindUserByUsername matches the username exactly.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query, args, err := psql.Select(userColumns...).
		From("users").
		Where("username = ?", username).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: building select query: %w", err)
	}
	var user model.User
	if err := pgxscan.Get(ctx, s.db, &user, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.UserNotFound(username)
		}
		return nil, classify("finding user by username", err)
	}
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query, args, err := psql.Select(userColumns...).
		From("users").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: building select query: %w", err)
	}
	var user model.User
	if err := pgxscan.Get(ctx, s.db, &user, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.UserNotFound(id)
		}
		return nil, classify("getting user", err)
	}
	return &user, nil
}
