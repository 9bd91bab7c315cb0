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

// InsertPost inserts a post and reads back the seq SQLite assigned to it.
func (db *DB) InsertPost(ctx context.Context, post *model.Post) error {
	if post.ID == "" {
		post.ID = xid.New().String()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, owner_id, image, caption, width, height, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.OwnerID,
		post.Image,
		post.Caption,
		post.Width,
		post.Height,
		toMillis(post.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.UserNotFound(post.OwnerID)
		}
		return classify("inserting post", err)
	}

	// seq is the INTEGER PRIMARY KEY, i.e. the rowid.
	seq, err := res.LastInsertId()
	if err != nil {
		return classify("reading post seq", err)
	}
	post.Seq = seq

	return nil
}

// FindPostsByOwner lists the owner's posts newest first.
func (db *DB) FindPostsByOwner(ctx context.Context, ownerID string) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT seq, id, owner_id, image, caption, width, height, created_at
		 FROM posts
		 WHERE owner_id = ?
		 ORDER BY seq DESC`,
		ownerID,
	)
	if err != nil {
		return nil, classify("listing posts", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, classify("scanning post", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating posts", err)
	}

	return posts, nil
}

// GetPostByID returns apperror.ErrNotFound when the id is unknown.
func (db *DB) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT seq, id, owner_id, image, caption, width, height, created_at
		 FROM posts WHERE id = ?`,
		id,
	)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, classify("getting post", err)
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*model.Post, error) {
	var (
		p       model.Post
		created int64
	)
	if err := s.Scan(&p.Seq, &p.ID, &p.OwnerID, &p.Image, &p.Caption, &p.Width, &p.Height, &created); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(created)
	return &p, nil
}
