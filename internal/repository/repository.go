// Package repository defines the storage contract shared by every backend.
//
// Implementations translate their own failures into apperror kinds:
// a duplicate username becomes apperror.ErrUsernameTaken, a missing record
// apperror.ErrNotFound (or ErrUserNotFound), and connectivity or timeout
// problems apperror.ErrStoreUnavailable. Driver types never cross this
// boundary.
package repository

import (
	"context"

	"github.com/sakif/instalitre/internal/model"
)

type UserRepository interface {
	// InsertUser stores a new user. ID and CreatedAt are assigned when empty.
	InsertUser(ctx context.Context, user *model.User) error
	// FindUserByUsername matches the username exactly (case-sensitive).
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type PostRepository interface {
	// InsertPost stores a post and sets post.Seq to the next value of the
	// store's insertion counter. ID and CreatedAt are assigned when empty.
	InsertPost(ctx context.Context, post *model.Post) error
	// FindPostsByOwner returns the owner's posts, highest Seq first. The
	// result is empty, not nil, when there are none.
	FindPostsByOwner(ctx context.Context, ownerID string) ([]model.Post, error)
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
}

// Store is a complete backend.
type Store interface {
	UserRepository
	PostRepository
	Ping(ctx context.Context) error
	Close() error
}
