package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/instalitre/internal/apperror"
	"github.com/sakif/instalitre/internal/model"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewWithDB(mockPool), mockPool
}

func TestStore_InsertUser(t *testing.T) {
	t.Run("Should insert user and assign id", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), "alice", "hash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		user := &model.User{Username: "alice", PasswordHash: "hash"}
		err := store.InsertUser(context.Background(), user)

		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.False(t, user.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should map unique violation to username taken", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), "alice", "hash", pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

		err := store.InsertUser(context.Background(), &model.User{Username: "alice", PasswordHash: "hash"})

		assert.ErrorIs(t, err, apperror.ErrUsernameTaken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should map connection failure to store unavailable", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), "alice", "hash", pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "08006"})

		err := store.InsertUser(context.Background(), &model.User{Username: "alice", PasswordHash: "hash"})

		assert.ErrorIs(t, err, apperror.ErrStoreUnavailable)
	})
}

func TestStore_FindUserByUsername(t *testing.T) {
	t.Run("Should return the matching user", func(t *testing.T) {
		store, mock := newMockStore(t)
		created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(userColumns).AddRow("u1", "alice", "hash", created))

		user, err := store.FindUserByUsername(context.Background(), "alice")

		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, "hash", user.PasswordHash)
		assert.Equal(t, created, user.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should report unknown username as user not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
			WithArgs("ghost").
			WillReturnRows(pgxmock.NewRows(userColumns))

		_, err := store.FindUserByUsername(context.Background(), "ghost")

		assert.ErrorIs(t, err, apperror.ErrUserNotFound)
	})
	t.Run("Should map deadline to store unavailable", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
			WithArgs("alice").
			WillReturnError(context.DeadlineExceeded)

		_, err := store.FindUserByUsername(context.Background(), "alice")

		assert.ErrorIs(t, err, apperror.ErrStoreUnavailable)
	})
}

func TestStore_GetUserByID(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(userColumns))

	_, err := store.GetUserByID(context.Background(), "missing")

	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertPost(t *testing.T) {
	t.Run("Should store the returned seq", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`INSERT INTO posts (.+) RETURNING seq`).
			WithArgs(pgxmock.AnyArg(), "u1", []byte("png"), "hello", 3, 2, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(int64(42)))

		post := &model.Post{OwnerID: "u1", Image: []byte("png"), Caption: "hello", Width: 3, Height: 2}
		err := store.InsertPost(context.Background(), post)

		require.NoError(t, err)
		assert.Equal(t, int64(42), post.Seq)
		assert.NotEmpty(t, post.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should map missing owner to user not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`INSERT INTO posts`).
			WithArgs(pgxmock.AnyArg(), "ghost", []byte("png"), "hello", 0, 0, pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23503"})

		err := store.InsertPost(context.Background(), &model.Post{OwnerID: "ghost", Image: []byte("png"), Caption: "hello"})

		assert.ErrorIs(t, err, apperror.ErrUserNotFound)
	})
}

func TestStore_FindPostsByOwner(t *testing.T) {
	t.Run("Should query newest first", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now().UTC()
		mock.ExpectQuery(`SELECT (.+) FROM posts WHERE owner_id = \$1 ORDER BY seq DESC`).
			WithArgs("u1").
			WillReturnRows(pgxmock.NewRows(postColumns).
				AddRow(int64(2), "p2", "u1", []byte("b"), "second", 1, 1, now).
				AddRow(int64(1), "p1", "u1", []byte("a"), "first", 1, 1, now))

		posts, err := store.FindPostsByOwner(context.Background(), "u1")

		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, "second", posts[0].Caption)
		assert.Equal(t, int64(2), posts[0].Seq)
		assert.Equal(t, []byte("a"), posts[1].Image)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Should return empty slice when owner has no posts", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT (.+) FROM posts`).
			WithArgs("u1").
			WillReturnRows(pgxmock.NewRows(postColumns))

		posts, err := store.FindPostsByOwner(context.Background(), "u1")

		require.NoError(t, err)
		assert.NotNil(t, posts)
		assert.Empty(t, posts)
	})
}

func TestStore_GetPostByID(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM posts WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows(postColumns))

	_, err := store.GetPostByID(context.Background(), "nope")

	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestStore_Ping(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectPing()

	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Migrate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS posts").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_posts_owner_seq").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
