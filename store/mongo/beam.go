package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/beam"
)

// CreateBeam persists a new beam.
func (s *Store) CreateBeam(ctx context.Context, b *beam.Beam) error {
	m := toBeamModel(b)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return wormhole.ErrBeamExists
		}
		return fmt.Errorf("wormhole/mongo: create beam: %w", err)
	}

	return nil
}

// GetBeam returns a beam by name.
func (s *Store) GetBeam(ctx context.Context, name string) (*beam.Beam, error) {
	var m beamModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"name": name}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, wormhole.ErrBeamNotFound
		}

		return nil, fmt.Errorf("wormhole/mongo: get beam: %w", err)
	}

	return fromBeamModel(&m)
}

// UpdateBeam modifies an existing beam.
func (s *Store) UpdateBeam(ctx context.Context, b *beam.Beam) error {
	m := toBeamModel(b)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("wormhole/mongo: update beam: %w", err)
	}

	if res.MatchedCount() == 0 {
		return wormhole.ErrBeamNotFound
	}

	return nil
}

// ListBeams returns every beam ordered by name.
func (s *Store) ListBeams(ctx context.Context) ([]*beam.Beam, error) {
	var models []beamModel

	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "name", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("wormhole/mongo: list beams: %w", err)
	}

	result := make([]*beam.Beam, len(models))
	for i := range models {
		b, err := fromBeamModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}

	return result, nil
}
