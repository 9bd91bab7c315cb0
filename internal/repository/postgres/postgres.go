// Package postgres implements repository.Store on PostgreSQL through pgx,
// with queries built by squirrel and rows mapped by scany.
package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/instalitre/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// DBInterface is the subset of *pgxpool.Pool the store needs. Tests pass a
// pgxmock pool instead.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store implements the repository interfaces using PostgreSQL.
type Store struct {
	db   DBInterface
	pool *pgxpool.Pool
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// New connects to dsn, verifies the connection and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	s := &Store{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection without touching the schema.
func NewWithDB(db DBInterface) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
//
// posts.seq is an identity column: PostgreSQL hands out strictly increasing
// values even under concurrent inserts.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			CONSTRAINT users_username_key UNIQUE (username)
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			seq        BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			id         TEXT NOT NULL UNIQUE,
			owner_id   TEXT NOT NULL REFERENCES users(id),
			image      BYTEA NOT NULL,
			caption    TEXT NOT NULL,
			width      INTEGER NOT NULL DEFAULT 0,
			height     INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_owner_seq ON posts (owner_id, seq DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrating: %w", err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close releases the pool when the store owns one.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
