package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sakif/instalitre/internal/apperror"
	"github.com/sakif/instalitre/internal/model"
)

func (s *Store) InsertUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.UsernameTaken(user.Username)
		}
		return classify("inserting user", err)
	}
	return nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := s.users.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.UserNotFound(username)
		}
		return nil, classify("finding user by username", err)
	}
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.users.FindOne(ctx, bson.D{{Key: "_id", Value: idMatch(id)}}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.UserNotFound(id)
		}
		return nil, classify("getting user", err)
	}
	return &user, nil
}
