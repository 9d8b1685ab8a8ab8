package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/channel"
)

// CreateWormhole binds a channel to a beam.
func (s *Store) CreateWormhole(ctx context.Context, w *channel.Wormhole) error {
	m := toWormholeModel(w)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return wormhole.ErrWormholeExists
		}
		return fmt.Errorf("wormhole/mongo: create wormhole: %w", err)
	}

	return nil
}

// GetWormhole returns the binding of a channel.
func (s *Store) GetWormhole(ctx context.Context, channelID string) (*channel.Wormhole, error) {
	var m wormholeModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"channel_id": channelID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, wormhole.ErrWormholeNotFound
		}

		return nil, fmt.Errorf("wormhole/mongo: get wormhole: %w", err)
	}

	return fromWormholeModel(&m)
}

// UpdateWormhole modifies an existing binding.
func (s *Store) UpdateWormhole(ctx context.Context, w *channel.Wormhole) error {
	m := toWormholeModel(w)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("wormhole/mongo: update wormhole: %w", err)
	}

	if res.MatchedCount() == 0 {
		return wormhole.ErrWormholeNotFound
	}

	return nil
}

// DeleteWormhole removes the binding of a channel.
func (s *Store) DeleteWormhole(ctx context.Context, channelID string) error {
	res, err := s.mdb.NewDelete((*wormholeModel)(nil)).
		Filter(bson.M{"channel_id": channelID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("wormhole/mongo: delete wormhole: %w", err)
	}

	if res.DeletedCount() == 0 {
		return wormhole.ErrWormholeNotFound
	}

	return nil
}

// ListWormholes returns the bindings of a beam, or of every beam when
// beamName is empty, in creation order.
func (s *Store) ListWormholes(ctx context.Context, beamName string) ([]*channel.Wormhole, error) {
	var models []wormholeModel

	filter := bson.M{}
	if beamName != "" {
		filter["beam"] = beamName
	}

	err := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("wormhole/mongo: list wormholes: %w", err)
	}

	result := make([]*channel.Wormhole, len(models))
	for i := range models {
		w, err := fromWormholeModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = w
	}

	return result, nil
}

// IncrementMessages atomically bumps the message counter of a binding.
func (s *Store) IncrementMessages(ctx context.Context, channelID string) error {
	res, err := s.mdb.Collection(colWormholes).UpdateOne(ctx,
		bson.M{"channel_id": channelID},
		bson.M{
			"$inc": bson.M{"messages": 1},
			"$set": bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("wormhole/mongo: increment messages: %w", err)
	}

	if res.MatchedCount == 0 {
		return wormhole.ErrWormholeNotFound
	}

	return nil
}
