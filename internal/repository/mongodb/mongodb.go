// Package mongodb implements repository.Store on MongoDB. Documents use the
// same collection and field names as earlier deployments of the app
// (users.username/password, posts.user_id/image/caption), so existing data
// stays readable. Those deployments keyed documents by ObjectId; new ones
// use xid strings, and lookups by id match either form.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sakif/instalitre/internal/apperror"
	"github.com/sakif/instalitre/internal/repository"
)

var _ repository.Store = (*Store)(nil)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	countersCollection = "counters"
	postsCounterID     = "posts"
)

// Store implements the repository interfaces on a MongoDB database.
type Store struct {
	client   *mongo.Client
	users    *mongo.Collection
	posts    *mongo.Collection
	counters *mongo.Collection
}

// New connects to uri, checks the primary is reachable and creates the
// indexes the store relies on.
func New(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		users:    db.Collection(usersCollection),
		posts:    db.Collection(postsCollection),
		counters: db.Collection(countersCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// ensureIndexes is idempotent. The unique username index makes concurrent
// registrations of the same name fail in the store rather than race.
func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	})
	if err != nil {
		return fmt.Errorf("mongo: creating users index: %w", err)
	}

	_, err = s.posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "seq", Value: -1}},
		Options: options.Index().SetName("user_seq"),
	})
	if err != nil {
		return fmt.Errorf("mongo: creating posts index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close disconnects the client, waiting at most five seconds.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// authenticationFailed is the server error code for bad credentials.
const authenticationFailed = 18

func isUnavailable(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == authenticationFailed {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		mongo.IsTimeout(err) ||
		mongo.IsNetworkError(err)
}

func classify(op string, err error) error {
	if isUnavailable(err) {
		return apperror.StoreUnavailable(op, err)
	}
	return fmt.Errorf("mongo: %s: %w", op, err)
}

// idMatch returns the filter value for an id field. An id that parses as an
// ObjectId hex string may be stored either as that string or as the
// ObjectId itself. The driver decodes ObjectIds into string fields as hex,
// so ids round-trip through model types unchanged.
func idMatch(id string) interface{} {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return id
	}
	return bson.D{{Key: "$in", Value: bson.A{id, oid}}}
}
