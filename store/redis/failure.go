package redis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/entity"
)

// failureModel is the JSON representation stored in Redis.
type failureModel struct {
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Beam      string    `json:"beam"`
	ChannelID string    `json:"channel_id"`
	SourceID  string    `json:"source_id"`
	Error     string    `json:"error"`
	FailedAt  time.Time `json:"failed_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toFailureModel(e *failure.Entry) *failureModel {
	return &failureModel{
		ID:        e.ID.String(),
		Op:        string(e.Op),
		Beam:      e.Beam,
		ChannelID: e.ChannelID,
		SourceID:  e.SourceID,
		Error:     e.Error,
		FailedAt:  e.FailedAt,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func fromFailureModel(m *failureModel) (*failure.Entry, error) {
	failureID, err := id.ParseFailureID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse failure ID %q: %w", m.ID, err)
	}
	return &failure.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        failureID,
		Op:        failure.Op(m.Op),
		Beam:      m.Beam,
		ChannelID: m.ChannelID,
		SourceID:  m.SourceID,
		Error:     m.Error,
		FailedAt:  m.FailedAt,
	}, nil
}

func (s *Store) RecordFailure(ctx context.Context, entry *failure.Entry) error {
	m := toFailureModel(entry)

	if err := s.setEntity(ctx, entityKey(prefixFailure, m.ID), m); err != nil {
		return fmt.Errorf("wormhole/redis: record failure: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, zFailureAll, goredis.Z{Score: scoreFromTime(m.FailedAt), Member: m.ID}).Err(); err != nil {
		return fmt.Errorf("wormhole/redis: record failure index: %w", err)
	}
	return nil
}

func (s *Store) GetFailure(ctx context.Context, failureID id.ID) (*failure.Entry, error) {
	var m failureModel
	if err := s.getEntity(ctx, entityKey(prefixFailure, failureID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, wormhole.ErrFailureNotFound
		}
		return nil, fmt.Errorf("wormhole/redis: get failure: %w", err)
	}
	return fromFailureModel(&m)
}

func (s *Store) ListFailures(ctx context.Context, opts failure.ListOpts) ([]*failure.Entry, error) {
	lo, hi := math.Inf(-1), math.Inf(1)
	if opts.From != nil {
		lo = scoreFromTime(*opts.From)
	}
	if opts.To != nil {
		hi = scoreFromTime(*opts.To)
	}

	ids, err := s.zRevRangeByScoreIDs(ctx, zFailureAll, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("wormhole/redis: list failures: %w", err)
	}

	result := make([]*failure.Entry, 0, len(ids))
	for _, entryID := range ids {
		var m failureModel
		if err := s.getEntity(ctx, entityKey(prefixFailure, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		entry, err := fromFailureModel(&m)
		if err != nil {
			return nil, err
		}
		if !opts.Match(entry) {
			continue
		}
		result = append(result, entry)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountFailures(ctx context.Context) (int64, error) {
	n, err := s.rdb.ZCard(ctx, zFailureAll).Result()
	if err != nil {
		return 0, fmt.Errorf("wormhole/redis: count failures: %w", err)
	}
	return n, nil
}

func (s *Store) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, zFailureAll, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatFloat(scoreFromTime(before), 'f', -1, 64),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("wormhole/redis: purge failures: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, entryID := range ids {
		keys[i] = entityKey(prefixFailure, entryID)
		members[i] = entryID
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, zFailureAll, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("wormhole/redis: purge failures: %w", err)
	}
	return int64(len(ids)), nil
}
