package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/instalitre/internal/apperror"
	"github.com/sakif/instalitre/internal/model"
)

// InsertUser inserts a new user row. The UNIQUE constraint on username is
// the final arbiter of duplicates; a violation is returned as
// apperror.ErrUsernameTaken.
func (db *DB) InsertUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at)
		 VALUES (?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.PasswordHash,
		toMillis(user.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.UsernameTaken(user.Username)
		}
		return classify("inserting user", err)
	}

	return nil
}

// FindUserByUsername looks a user up by exact username.
// Returns apperror.ErrUserNotFound if there is none.
func (db *DB) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at
		 FROM users WHERE username = ?`,
		username,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.UserNotFound(username)
		}
		return nil, classify("finding user by username", err)
	}
	return u, nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrUserNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at
		 FROM users WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.UserNotFound(id)
		}
		return nil, classify("getting user", err)
	}
	return u, nil
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u       model.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}
