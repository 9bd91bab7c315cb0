package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/instalitre/internal/apperror"
	"github.com/sakif/instalitre/internal/imaging/canonical"
	"github.com/sakif/instalitre/internal/model"
)

func newTestContentService(t *testing.T, store *fakeStore, cfg ContentConfig) *ContentService {
	t.Helper()
	enc := canonical.New(canonical.Config{Workers: 2}, discardLogger())
	return NewContentService(store, store, enc, cfg, nil, discardLogger())
}

func fastRetryConfig(retries uint64) ContentConfig {
	cfg := DefaultContentConfig()
	cfg.ListRetries = retries
	cfg.RetryBase = time.Millisecond
	return cfg
}

func registerUser(t *testing.T, store *fakeStore, username string) string {
	t.Helper()
	user := &model.User{Username: username, PasswordHash: "x"}
	require.NoError(t, store.InsertUser(context.Background(), user))
	return user.ID
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// =========================================================================
// PUBLISH TESTS
// =========================================================================

func TestPublish_RoundTrip(t *testing.T) {
	store := newFakeStore()
	svc := newTestContentService(t, store, fastRetryConfig(0))
	alice := registerUser(t, store, "alice")

	upload := testPNG(t, 4, 3)
	id, err := svc.Publish(context.Background(), alice, upload, "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	posts, err := svc.ListPosts(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, id, posts[0].ID)
	assert.Equal(t, "hello", posts[0].Caption)
	assert.Equal(t, 4, posts[0].Width)
	assert.Equal(t, 3, posts[0].Height)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(posts[0].Image))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 4, cfg.Width)

	want, err := png.Decode(bytes.NewReader(upload))
	require.NoError(t, err)
	got, err := png.Decode(bytes.NewReader(posts[0].Image))
	require.NoError(t, err)
	require.Equal(t, want.Bounds(), got.Bounds())
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, color.RGBAModel.Convert(want.At(x, y)), color.RGBAModel.Convert(got.At(x, y)),
				"pixel (%d,%d)", x, y)
		}
	}
}

func TestPublish_CaptionStoredVerbatim(t *testing.T) {
	store := newFakeStore()
	svc := newTestContentService(t, store, fastRetryConfig(0))
	alice := registerUser(t, store, "alice")

	caption := "  sunset \n#beach  "
	_, err := svc.Publish(context.Background(), alice, testPNG(t, 2, 2), caption)
	require.NoError(t, err)

	posts, err := svc.ListPosts(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, caption, posts[0].Caption)
}

func TestPublish_Validation(t *testing.T) {
	store := newFakeStore()
	svc := newTestContentService(t, store, fastRetryConfig(0))
	alice := registerUser(t, store, "alice")
	img := testPNG(t, 2, 2)

	cases := []struct {
		name    string
		owner   string
		image   []byte
		caption string
		want    error
	}{
		{"empty caption", alice, img, "", apperror.ErrEmptyCaption},
		{"whitespace caption", alice, img, " \t\n", apperror.ErrEmptyCaption},
		{"caption too long", alice, img, strings.Repeat("é", 2201), apperror.ErrValidation},
		{"no owner", "", img, "hi", apperror.ErrEmptyInput},
		{"unknown owner", "ghost", img, "hi", apperror.ErrUserNotFound},
		{"empty image", alice, nil, "hi", apperror.ErrImageDecode},
		{"text as image", alice, []byte("definitely not an image"), "hi", apperror.ErrImageDecode},
		{"truncated png", alice, img[:len(img)/2], "hi", apperror.ErrImageDecode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Publish(context.Background(), tc.owner, tc.image, tc.caption)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.Empty(t, store.posts, "rejected publishes must not store anything")
}

func TestPublish_CaptionAtLimit(t *testing.T) {
	store := newFakeStore()
	svc := newTestContentService(t, store, fastRetryConfig(0))
	alice := registerUser(t, store, "alice")

	_, err := svc.Publish(context.Background(), alice, testPNG(t, 1, 1), strings.Repeat("é", 2200))
	assert.NoError(t, err)
}

func TestPublish_StoreError(t *testing.T) {
	store := newFakeStore()
	svc := newTestContentService(t, store, fastRetryConfig(0))
	alice := registerUser(t, store, "alice")
	store.insertErr = apperror.StoreUnavailable("inserting post", errors.New("disk I/O error"))

	_, err := svc.Publish(context.Background(), alice, testPNG(t, 1, 1), "hi")
	assert.ErrorIs(t, err, apperror.ErrStoreUnavailable)
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListPosts_NewestFirst(t *testing.T) {
	store := newFakeStore()
	svc := newTestContentService(t, store, fastRetryConfig(0))
	alice := registerUser(t, store, "alice")

	var ids []string
	for _, c := range []string{"first", "second", "third"} {
		id, err := svc.Publish(context.Background(), alice, testPNG(t, 1, 1), c)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	posts, err := svc.ListPosts(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{posts[0].ID, posts[1].ID, posts[2].ID})
	assert.Equal(t, "third", posts[0].Caption)
}

func TestListPosts_IsolatedByOwner(t *testing.T) {
	store := newFakeStore()
	svc := newTestContentService(t, store, fastRetryConfig(0))
	alice := registerUser(t, store, "alice")
	bob := registerUser(t, store, "bob")

	_, err := svc.Publish(context.Background(), alice, testPNG(t, 1, 1), "alice's")
	require.NoError(t, err)

	posts, err := svc.ListPosts(context.Background(), bob)
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)

	posts, err = svc.ListPosts(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestListPosts_RetriesUnavailable(t *testing.T) {
	store := newFakeStore()
	svc := newTestContentService(t, store, fastRetryConfig(3))
	alice := registerUser(t, store, "alice")
	_, err := svc.Publish(context.Background(), alice, testPNG(t, 1, 1), "hi")
	require.NoError(t, err)

	unavailable := apperror.StoreUnavailable("listing posts", errors.New("database is locked"))
	store.listErrs = []error{unavailable, unavailable}

	posts, err := svc.ListPosts(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
	assert.Equal(t, 3, store.listCalls)
}

func TestListPosts_RetriesExhausted(t *testing.T) {
	store := newFakeStore()
	svc := newTestContentService(t, store, fastRetryConfig(2))
	unavailable := apperror.StoreUnavailable("listing posts", errors.New("connection refused"))
	store.listErrs = []error{unavailable, unavailable, unavailable, unavailable}

	_, err := svc.ListPosts(context.Background(), "alice")
	assert.ErrorIs(t, err, apperror.ErrStoreUnavailable)
	assert.Equal(t, 3, store.listCalls, "one attempt plus two retries")
}

func TestListPosts_NoRetryOnOtherErrors(t *testing.T) {
	store := newFakeStore()
	svc := newTestContentService(t, store, fastRetryConfig(3))
	store.listErrs = []error{errors.New("syntax error")}

	_, err := svc.ListPosts(context.Background(), "alice")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperror.ErrStoreUnavailable))
	assert.Equal(t, 1, store.listCalls)
}

func TestListPosts_CancelledContext(t *testing.T) {
	store := newFakeStore()
	cfg := fastRetryConfig(5)
	cfg.RetryBase = time.Hour
	svc := newTestContentService(t, store, cfg)
	unavailable := apperror.StoreUnavailable("listing posts", errors.New("connection refused"))
	store.listErrs = []error{unavailable, unavailable}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.ListPosts(ctx, "alice")
	require.Error(t, err)
	assert.Equal(t, 1, store.listCalls)
}

func TestListPosts_EmptyOwner(t *testing.T) {
	svc := newTestContentService(t, newFakeStore(), fastRetryConfig(0))

	_, err := svc.ListPosts(context.Background(), "")
	assert.ErrorIs(t, err, apperror.ErrEmptyInput)
}

// =========================================================================
// GET POST TESTS
// =========================================================================

func TestGetPost(t *testing.T) {
	store := newFakeStore()
	svc := newTestContentService(t, store, fastRetryConfig(0))
	alice := registerUser(t, store, "alice")
	bob := registerUser(t, store, "bob")

	id, err := svc.Publish(context.Background(), alice, testPNG(t, 2, 2), "mine")
	require.NoError(t, err)

	post, err := svc.GetPost(context.Background(), alice, id)
	require.NoError(t, err)
	assert.Equal(t, "mine", post.Caption)

	_, err = svc.GetPost(context.Background(), bob, id)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.GetPost(context.Background(), alice, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
