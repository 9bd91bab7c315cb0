package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"

	"github.com/sakif/instalitre/internal/apperror"
	"github.com/sakif/instalitre/internal/imaging"
	"github.com/sakif/instalitre/internal/metrics"
	"github.com/sakif/instalitre/internal/model"
	"github.com/sakif/instalitre/internal/repository"
)

// ContentConfig tunes ContentService.
type ContentConfig struct {
	// MaxCaptionLength is counted in characters, not bytes.
	MaxCaptionLength int
	// ListRetries is how many times ListPosts retries after the store
	// reported itself unavailable. Zero disables retries.
	ListRetries uint64
	// RetryBase is the first backoff interval; later ones double.
	RetryBase time.Duration
}

// DefaultContentConfig returns production defaults.
func DefaultContentConfig() ContentConfig {
	return ContentConfig{
		MaxCaptionLength: 2200,
		ListRetries:      3,
		RetryBase:        100 * time.Millisecond,
	}
}

// ContentService publishes and lists posts.
type ContentService struct {
	posts   repository.PostRepository
	users   repository.UserRepository
	images  imaging.Canonicalizer
	config  ContentConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewContentService wires a ContentService. m may be nil.
func NewContentService(
	posts repository.PostRepository,
	users repository.UserRepository,
	images imaging.Canonicalizer,
	cfg ContentConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ContentService {
	if cfg.MaxCaptionLength <= 0 {
		cfg.MaxCaptionLength = DefaultContentConfig().MaxCaptionLength
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultContentConfig().RetryBase
	}
	return &ContentService{
		posts:   posts,
		users:   users,
		images:  images,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// Publish stores a new post for ownerID and returns its id.
//
// The caption is stored exactly as given but must contain something other
// than whitespace. The image is decoded and re-encoded as PNG; only the PNG
// is stored. Publish is never retried internally.
func (s *ContentService) Publish(ctx context.Context, ownerID string, image []byte, caption string) (id string, err error) {
	var stored int
	defer func() { s.metrics.Publish(err, stored) }()

	if ownerID == "" {
		return "", apperror.EmptyInput("owner id")
	}
	if strings.TrimSpace(caption) == "" {
		return "", apperror.EmptyCaption()
	}
	if n := utf8.RuneCountInString(caption); n > s.config.MaxCaptionLength {
		return "", apperror.ValidationFailed("caption",
			fmt.Sprintf("caption must be at most %d characters, got %d", s.config.MaxCaptionLength, n))
	}

	if _, err := s.users.GetUserByID(ctx, ownerID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.UserNotFound(ownerID)
		}
		return "", fmt.Errorf("service/content: checking owner: %w", err)
	}

	res, err := s.images.Canonicalize(ctx, image)
	if err != nil {
		if errors.Is(err, imaging.ErrDecode) {
			s.logger.Info("rejected undecodable upload",
				slog.String("userID", ownerID),
				slog.Int("bytes", len(image)),
				slog.String("error", err.Error()),
			)
			return "", apperror.ImageDecode(err)
		}
		return "", fmt.Errorf("service/content: canonicalizing image: %w", err)
	}

	post := &model.Post{
		OwnerID: ownerID,
		Image:   res.PNG,
		Caption: caption,
		Width:   res.Width,
		Height:  res.Height,
	}
	if err := s.posts.InsertPost(ctx, post); err != nil {
		s.logger.Error("failed to insert post",
			slog.String("userID", ownerID),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("service/content: inserting post: %w", err)
	}
	stored = len(post.Image)

	s.logger.Info("post published",
		slog.String("postID", post.ID),
		slog.String("userID", ownerID),
		slog.String("sourceFormat", res.SourceFormat),
		slog.Int64("seq", post.Seq),
	)
	return post.ID, nil
}

// ListPosts returns the owner's posts newest first, or an empty slice.
//
// The read is idempotent, so when the store reports itself unavailable it
// is retried with exponential backoff up to ContentConfig.ListRetries times.
func (s *ContentService) ListPosts(ctx context.Context, ownerID string) ([]model.Post, error) {
	if ownerID == "" {
		return nil, apperror.EmptyInput("owner id")
	}

	backoff := retry.WithMaxRetries(s.config.ListRetries,
		retry.WithCappedDuration(2*time.Second, retry.NewExponential(s.config.RetryBase)))

	var (
		posts   []model.Post
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.ListRetry()
			s.logger.Warn("retrying post listing",
				slog.String("userID", ownerID),
				slog.Int("attempt", attempt),
			)
		}

		found, err := s.posts.FindPostsByOwner(ctx, ownerID)
		if err != nil {
			if errors.Is(err, apperror.ErrStoreUnavailable) {
				return retry.RetryableError(err)
			}
			return err
		}
		posts = found
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service/content: listing posts for %s: %w", ownerID, err)
	}

	if posts == nil {
		posts = []model.Post{}
	}
	return posts, nil
}

// GetPost returns a single post if ownerID owns it.
func (s *ContentService) GetPost(ctx context.Context, ownerID, postID string) (*model.Post, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("service/content: fetching post %s: %w", postID, err)
	}
	if post.OwnerID != ownerID {
		return nil, apperror.Forbidden("post belongs to another user")
	}
	return post, nil
}
