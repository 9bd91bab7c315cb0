package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/instalitre/internal/apperror"
	"github.com/sakif/instalitre/internal/model"
)

// nextSeq atomically increments the posts counter and returns the new value.
// The counter document is created on first use.
func (s *Store) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: postsCounterID}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

// InsertPost takes a sequence number from the counter, then inserts the
// post. A failed insert leaves a gap in the sequence, which is harmless:
// only the relative order matters.
func (s *Store) InsertPost(ctx context.Context, post *model.Post) error {
	if post.ID == "" {
		post.ID = xid.New().String()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	seq, err := s.nextSeq(ctx)
	if err != nil {
		return classify("allocating post seq", err)
	}
	post.Seq = seq

	if _, err := s.posts.InsertOne(ctx, post); err != nil {
		return classify("inserting post", err)
	}
	return nil
}

func (s *Store) FindPostsByOwner(ctx context.Context, ownerID string) ([]model.Post, error) {
	cur, err := s.posts.Find(ctx,
		bson.D{{Key: "user_id", Value: idMatch(ownerID)}},
		// Legacy posts carry no seq and sort last, newest ObjectId first.
		options.Find().SetSort(bson.D{{Key: "seq", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, classify("listing posts", err)
	}

	posts := make([]model.Post, 0)
	if err := cur.All(ctx, &posts); err != nil {
		return nil, classify("decoding posts", err)
	}
	return posts, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	err := s.posts.FindOne(ctx, bson.D{{Key: "_id", Value: idMatch(id)}}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, classify("getting post", err)
	}
	return &post, nil
}
