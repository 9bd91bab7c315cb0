package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/instalitre/internal/apperror"
	"github.com/sakif/instalitre/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeStore is an in-memory repository.UserRepository and PostRepository.
// It enforces username uniqueness in InsertUser the way the real backends do.
type fakeStore struct {
	mu     sync.Mutex
	users  map[string]*model.User // keyed by ID
	byName map[string]*model.User
	posts  []model.Post
	seq    int64

	// hooks for simulating failures; nil means normal behaviour
	findUserErr  error
	insertErr    error
	listErrs     []error // consumed one per FindPostsByOwner call
	listCalls    int
	skipPrecheck bool // FindUserByUsername always misses, forcing the insert path
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[string]*model.User),
		byName: make(map[string]*model.User),
	}
}

func (f *fakeStore) InsertUser(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.byName[user.Username]; ok {
		return apperror.UsernameTaken(user.Username)
	}
	user.ID = xid.New().String()
	user.CreatedAt = time.Now()
	copied := *user
	f.users[user.ID] = &copied
	f.byName[user.Username] = &copied
	return nil
}

func (f *fakeStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findUserErr != nil {
		return nil, f.findUserErr
	}
	u, ok := f.byName[username]
	if !ok || f.skipPrecheck {
		return nil, apperror.UserNotFound(username)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.UserNotFound(id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) InsertPost(ctx context.Context, post *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.seq++
	post.ID = xid.New().String()
	post.Seq = f.seq
	post.CreatedAt = time.Now()
	f.posts = append(f.posts, *post)
	return nil
}

func (f *fakeStore) FindPostsByOwner(ctx context.Context, ownerID string) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	out := make([]model.Post, 0)
	for _, p := range f.posts {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out, nil
}

func (f *fakeStore) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID == id {
			copied := p
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("post", id)
}
