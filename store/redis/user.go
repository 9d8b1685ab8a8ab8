package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/entity"
	"github.com/xraph/wormhole/user"
)

// userModel is the JSON representation stored in Redis.
type userModel struct {
	ID         string    `json:"id"`
	AccountID  int64     `json:"account_id"`
	Nickname   string    `json:"nickname"`
	HomeID     string    `json:"home_id,omitempty"`
	Readonly   bool      `json:"readonly"`
	Restricted bool      `json:"restricted"`
	Mod        bool      `json:"mod"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toUserModel(u *user.User) *userModel {
	return &userModel{
		ID:         u.ID.String(),
		AccountID:  u.AccountID,
		Nickname:   u.Nickname,
		HomeID:     u.HomeID,
		Readonly:   u.Readonly,
		Restricted: u.Restricted,
		Mod:        u.Mod,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func fromUserModel(m *userModel) (*user.User, error) {
	userID, err := id.ParseUserID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user ID %q: %w", m.ID, err)
	}
	return &user.User{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         userID,
		AccountID:  m.AccountID,
		Nickname:   m.Nickname,
		HomeID:     m.HomeID,
		Readonly:   m.Readonly,
		Restricted: m.Restricted,
		Mod:        m.Mod,
	}, nil
}

func userKey(accountID int64) string {
	return entityKey(prefixUser, strconv.FormatInt(accountID, 10))
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	m := toUserModel(u)
	key := userKey(m.AccountID)

	ok, err := s.createEntity(ctx, key, m)
	if err != nil {
		return fmt.Errorf("wormhole/redis: create user: %w", err)
	}
	if !ok {
		return wormhole.ErrUserExists
	}

	if err := s.claimNickname(ctx, m.Nickname, m.AccountID); err != nil {
		s.rdb.Del(ctx, key)
		return err
	}

	if err := s.rdb.ZAdd(ctx, zUserAll, goredis.Z{Score: float64(m.AccountID), Member: m.AccountID}).Err(); err != nil {
		return fmt.Errorf("wormhole/redis: create user index: %w", err)
	}
	return nil
}

// claimNickname reserves nickname for accountID. Re-claiming one's own
// nickname succeeds.
func (s *Store) claimNickname(ctx context.Context, nickname string, accountID int64) error {
	owner := strconv.FormatInt(accountID, 10)
	ok, err := s.rdb.SetNX(ctx, uniqueNickname+nickname, owner, 0).Result()
	if err != nil {
		return fmt.Errorf("wormhole/redis: claim nickname: %w", err)
	}
	if ok {
		return nil
	}

	current, err := s.rdb.Get(ctx, uniqueNickname+nickname).Result()
	if err != nil && !isRedisNil(err) {
		return fmt.Errorf("wormhole/redis: claim nickname: %w", err)
	}
	if current != owner {
		return wormhole.ErrNicknameTaken
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, accountID int64) (*user.User, error) {
	var m userModel
	if err := s.getEntity(ctx, userKey(accountID), &m); err != nil {
		if isRedisNil(err) {
			return nil, wormhole.ErrUserNotFound
		}
		return nil, fmt.Errorf("wormhole/redis: get user: %w", err)
	}
	return fromUserModel(&m)
}

func (s *Store) GetUserByNickname(ctx context.Context, nickname string) (*user.User, error) {
	accountID, err := s.rdb.Get(ctx, uniqueNickname+nickname).Int64()
	if err != nil {
		if isRedisNil(err) {
			return nil, wormhole.ErrUserNotFound
		}
		return nil, fmt.Errorf("wormhole/redis: get user by nickname: %w", err)
	}
	return s.GetUser(ctx, accountID)
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	key := userKey(u.AccountID)

	var existing userModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isRedisNil(err) {
			return wormhole.ErrUserNotFound
		}
		return fmt.Errorf("wormhole/redis: update user get: %w", err)
	}

	m := toUserModel(u)
	m.UpdatedAt = now()

	if m.Nickname != existing.Nickname {
		if err := s.claimNickname(ctx, m.Nickname, m.AccountID); err != nil {
			return err
		}
		s.rdb.Del(ctx, uniqueNickname+existing.Nickname)
	}

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("wormhole/redis: update user: %w", err)
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, accountID int64) error {
	key := userKey(accountID)

	var m userModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return wormhole.ErrUserNotFound
		}
		return fmt.Errorf("wormhole/redis: delete user get: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key, uniqueNickname+m.Nickname)
	pipe.ZRem(ctx, zUserAll, accountID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("wormhole/redis: delete user: %w", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*user.User, error) {
	members, err := s.rdb.ZRange(ctx, zUserAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("wormhole/redis: list users: %w", err)
	}

	result := make([]*user.User, 0, len(members))
	for _, member := range members {
		var m userModel
		if err := s.getEntity(ctx, entityKey(prefixUser, member), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		u, err := fromUserModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, nil
}
