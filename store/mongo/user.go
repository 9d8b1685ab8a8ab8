package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/user"
)

// CreateUser registers a user.
func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	m := toUserModel(u)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return s.duplicateUser(ctx, u.AccountID)
		}
		return fmt.Errorf("wormhole/mongo: create user: %w", err)
	}

	return nil
}

// duplicateUser tells an existing account from a taken nickname after a
// unique index violation.
func (s *Store) duplicateUser(ctx context.Context, accountID int64) error {
	_, err := s.GetUser(ctx, accountID)
	switch {
	case err == nil:
		return wormhole.ErrUserExists
	case errors.Is(err, wormhole.ErrUserNotFound):
		return wormhole.ErrNicknameTaken
	default:
		return err
	}
}

// GetUser returns a user by account.
func (s *Store) GetUser(ctx context.Context, accountID int64) (*user.User, error) {
	return s.findUser(ctx, bson.M{"account_id": accountID})
}

// GetUserByNickname returns the user holding nickname.
func (s *Store) GetUserByNickname(ctx context.Context, nickname string) (*user.User, error) {
	return s.findUser(ctx, bson.M{"nickname": nickname})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*user.User, error) {
	var m userModel

	err := s.mdb.NewFind(&m).
		Filter(filter).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, wormhole.ErrUserNotFound
		}

		return nil, fmt.Errorf("wormhole/mongo: get user: %w", err)
	}

	return fromUserModel(&m)
}

// UpdateUser modifies an existing user.
func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	m := toUserModel(u)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return wormhole.ErrNicknameTaken
		}
		return fmt.Errorf("wormhole/mongo: update user: %w", err)
	}

	if res.MatchedCount() == 0 {
		return wormhole.ErrUserNotFound
	}

	return nil
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(ctx context.Context, accountID int64) error {
	res, err := s.mdb.NewDelete((*userModel)(nil)).
		Filter(bson.M{"account_id": accountID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("wormhole/mongo: delete user: %w", err)
	}

	if res.DeletedCount() == 0 {
		return wormhole.ErrUserNotFound
	}

	return nil
}

// ListUsers returns every user ordered by account.
func (s *Store) ListUsers(ctx context.Context) ([]*user.User, error) {
	var models []userModel

	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "account_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("wormhole/mongo: list users: %w", err)
	}

	result := make([]*user.User, len(models))
	for i := range models {
		u, err := fromUserModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = u
	}

	return result, nil
}
