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

var postColumns = []string{"seq", "id", "owner_id", "image", "caption", "width", "height", "created_at"}

// InsertPost creates a post and stores the identity value in post.Seq.
func (s *Store) InsertPost(ctx context.Context, post *model.Post) error {
	if post.ID == "" {
		post.ID = xid.New().String()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	query, args, err := psql.Insert("posts").
		Columns("id", "owner_id", "image", "caption", "width", "height", "created_at").
		Values(post.ID, post.OwnerID, post.Image, post.Caption, post.Width, post.Height, post.CreatedAt).
		Suffix("RETURNING seq").
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: building insert query: %w", err)
	}
	if err := s.db.QueryRow(ctx, query, args...).Scan(&post.Seq); err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return apperror.UserNotFound(post.OwnerID)
		}
		return classify("inserting post", err)
	}
	return nil
}

// FindPostsByOwner lists the owner's posts, newest first.
func (s *Store) FindPostsByOwner(ctx context.Context, ownerID string) ([]model.Post, error) {
	query, args, err := psql.Select(postColumns...).
		From("posts").
		Where("owner_id = ?", ownerID).
		OrderBy("seq DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: building select query: %w", err)
	}
	posts := make([]model.Post, 0)
	if err := pgxscan.Select(ctx, s.db, &posts, query, args...); err != nil {
		return nil, classify("listing posts", err)
	}
	if posts == nil {
		posts = []model.Post{}
	}
	return posts, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	query, args, err := psql.Select(postColumns...).
		From("posts").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: building select query: %w", err)
	}
	var post model.Post
	if err := pgxscan.Get(ctx, s.db, &post, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, classify("getting post", err)
	}
	return &post, nil
}
