package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/instalitre/internal/apperror"
	"github.com/sakif/instalitre/internal/auth"
	"github.com/sakif/instalitre/internal/model"
)

// ContentService is what PostHandler needs from the content store.
// *service.ContentService satisfies it.
type ContentService interface {
	Publish(ctx context.Context, ownerID string, image []byte, caption string) (string, error)
	ListPosts(ctx context.Context, ownerID string) ([]model.Post, error)
	GetPost(ctx context.Context, ownerID, postID string) (*model.Post, error)
}

// PostHandler serves the authenticated user's posts.
type PostHandler struct {
	content        ContentService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewPostHandler creates a PostHandler. maxUploadBytes bounds the whole
// multipart request body.
func NewPostHandler(content ContentService, maxUploadBytes int64, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		content:        content,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// postResponse is a post as listed by the API. The PNG itself is fetched
// separately from ImageURL.
type postResponse struct {
	ID        string    `json:"id"`
	Caption   string    `json:"caption"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"createdAt"`
	ImageURL  string    `json:"imageUrl"`
}

func toPostResponse(p model.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		Caption:   p.Caption,
		Width:     p.Width,
		Height:    p.Height,
		CreatedAt: p.CreatedAt,
		ImageURL:  "/api/posts/" + p.ID + "/image",
	}
}

// HandlePublish stores a new post for the caller.
//
// HTTP: POST /api/posts
// Body: multipart/form-data with an "image" file and a "caption" field
// Returns: 201 {"id": "..."}
func (h *PostHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.InvalidCredentials())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	// Anything over 1 MiB spills to temporary files.
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		if isTooLarge(err) {
			writeTooLarge(w, h.maxUploadBytes)
			return
		}
		writeError(w, apperror.ValidationFailed("body", "expected a multipart/form-data body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, apperror.EmptyInput("image"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("publish: reading upload failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	id, err := h.content.Publish(r.Context(), userID, data, r.FormValue("caption"))
	if err != nil {
		if status, _ := errorStatus(err); status >= http.StatusInternalServerError {
			h.logger.Error("publish failed",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// HandleList returns the caller's posts, newest first.
//
// HTTP: GET /api/posts
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.InvalidCredentials())
		return
	}

	posts, err := h.content.ListPosts(r.Context(), userID)
	if err != nil {
		h.logger.Error("list posts failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleImage streams the stored PNG of one of the caller's posts.
//
// HTTP: GET /api/posts/{id}/image
func (h *PostHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.InvalidCredentials())
		return
	}

	post, err := h.content.GetPost(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(post.Image)))
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(post.Image); err != nil {
		h.logger.Warn("writing image failed",
			slog.String("postID", post.ID),
			slog.String("error", err.Error()),
		)
	}
}
