package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/entity"
)

// wormholeModel is the JSON representation stored in Redis.
type wormholeModel struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	Beam      string    `json:"beam"`
	AdminID   int64     `json:"admin_id"`
	Active    bool      `json:"active"`
	Readonly  bool      `json:"readonly"`
	Logo      string    `json:"logo,omitempty"`
	Messages  int64     `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWormholeModel(w *channel.Wormhole) *wormholeModel {
	return &wormholeModel{
		ID:        w.ID.String(),
		ChannelID: w.ChannelID,
		Beam:      w.Beam,
		AdminID:   w.AdminID,
		Active:    w.Active,
		Readonly:  w.Readonly,
		Logo:      w.Logo,
		Messages:  w.Messages,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func fromWormholeModel(m *wormholeModel) (*channel.Wormhole, error) {
	whID, err := id.ParseWormholeID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse wormhole ID %q: %w", m.ID, err)
	}
	return &channel.Wormhole{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        whID,
		ChannelID: m.ChannelID,
		Beam:      m.Beam,
		AdminID:   m.AdminID,
		Active:    m.Active,
		Readonly:  m.Readonly,
		Logo:      m.Logo,
		Messages:  m.Messages,
	}, nil
}

func (s *Store) CreateWormhole(ctx context.Context, w *channel.Wormhole) error {
	m := toWormholeModel(w)

	ok, err := s.createEntity(ctx, entityKey(prefixWormhole, m.ChannelID), m)
	if err != nil {
		return fmt.Errorf("wormhole/redis: create wormhole: %w", err)
	}
	if !ok {
		return wormhole.ErrWormholeExists
	}

	z := goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ChannelID}
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zWormholeAll, z)
	pipe.ZAdd(ctx, zWormholeBeam+m.Beam, z)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("wormhole/redis: create wormhole indexes: %w", err)
	}
	return nil
}

func (s *Store) GetWormhole(ctx context.Context, channelID string) (*channel.Wormhole, error) {
	var m wormholeModel
	if err := s.getEntity(ctx, entityKey(prefixWormhole, channelID), &m); err != nil {
		if isRedisNil(err) {
			return nil, wormhole.ErrWormholeNotFound
		}
		return nil, fmt.Errorf("wormhole/redis: get wormhole: %w", err)
	}
	return fromWormholeModel(&m)
}

func (s *Store) UpdateWormhole(ctx context.Context, w *channel.Wormhole) error {
	key := entityKey(prefixWormhole, w.ChannelID)

	// Verify existence and find the previous beam.
	var existing wormholeModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isRedisNil(err) {
			return wormhole.ErrWormholeNotFound
		}
		return fmt.Errorf("wormhole/redis: update wormhole get: %w", err)
	}

	m := toWormholeModel(w)
	m.UpdatedAt = now()
	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("wormhole/redis: update wormhole: %w", err)
	}

	if existing.Beam != m.Beam {
		pipe := s.rdb.Pipeline()
		pipe.ZRem(ctx, zWormholeBeam+existing.Beam, m.ChannelID)
		pipe.ZAdd(ctx, zWormholeBeam+m.Beam, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ChannelID})
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("wormhole/redis: update wormhole indexes: %w", err)
		}
	}
	return nil
}

func (s *Store) DeleteWormhole(ctx context.Context, channelID string) error {
	key := entityKey(prefixWormhole, channelID)

	var m wormholeModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return wormhole.ErrWormholeNotFound
		}
		return fmt.Errorf("wormhole/redis: delete wormhole get: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, zWormholeAll, channelID)
	pipe.ZRem(ctx, zWormholeBeam+m.Beam, channelID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("wormhole/redis: delete wormhole: %w", err)
	}
	return nil
}

func (s *Store) ListWormholes(ctx context.Context, beamName string) ([]*channel.Wormhole, error) {
	index := zWormholeAll
	if beamName != "" {
		index = zWormholeBeam + beamName
	}

	channelIDs, err := s.rdb.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("wormhole/redis: list wormholes: %w", err)
	}

	result := make([]*channel.Wormhole, 0, len(channelIDs))
	for _, channelID := range channelIDs {
		var m wormholeModel
		if err := s.getEntity(ctx, entityKey(prefixWormhole, channelID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		w, err := fromWormholeModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, nil
}

// IncrementMessages bumps the message counter under WATCH so concurrent
// increments and admin updates do not lose writes.
func (s *Store) IncrementMessages(ctx context.Context, channelID string) error {
	key := entityKey(prefixWormhole, channelID)

	increment := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		var m wormholeModel
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		m.Messages++
		next, err := json.Marshal(&m)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := s.rdb.Watch(ctx, increment, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, goredis.TxFailedErr):
			continue
		case isRedisNil(err):
			return wormhole.ErrWormholeNotFound
		default:
			return fmt.Errorf("wormhole/redis: increment messages: %w", err)
		}
	}
	return fmt.Errorf("wormhole/redis: increment messages: %w", goredis.TxFailedErr)
}
