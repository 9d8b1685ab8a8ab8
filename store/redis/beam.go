package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/entity"
)

// beamModel is the JSON representation stored in Redis.
type beamModel struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	AdminID   int64     `json:"admin_id"`
	Anonymity string    `json:"anonymity"`
	Replace   bool      `json:"replace"`
	Timeout   int       `json:"timeout"`
	MaxLength int       `json:"max_length"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toBeamModel(b *beam.Beam) *beamModel {
	return &beamModel{
		ID:        b.ID.String(),
		Name:      b.Name,
		Active:    b.Active,
		AdminID:   b.AdminID,
		Anonymity: string(b.Anonymity),
		Replace:   b.Replace,
		Timeout:   b.Timeout,
		MaxLength: b.MaxLength,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func fromBeamModel(m *beamModel) (*beam.Beam, error) {
	beamID, err := id.ParseBeamID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse beam ID %q: %w", m.ID, err)
	}
	return &beam.Beam{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        beamID,
		Name:      m.Name,
		Active:    m.Active,
		AdminID:   m.AdminID,
		Anonymity: beam.Anonymity(m.Anonymity),
		Replace:   m.Replace,
		Timeout:   m.Timeout,
		MaxLength: m.MaxLength,
	}, nil
}

func (s *Store) CreateBeam(ctx context.Context, b *beam.Beam) error {
	ok, err := s.createEntity(ctx, entityKey(prefixBeam, b.Name), toBeamModel(b))
	if err != nil {
		return fmt.Errorf("wormhole/redis: create beam: %w", err)
	}
	if !ok {
		return wormhole.ErrBeamExists
	}

	if err := s.rdb.SAdd(ctx, sBeamNames, b.Name).Err(); err != nil {
		return fmt.Errorf("wormhole/redis: create beam index: %w", err)
	}
	return nil
}

func (s *Store) GetBeam(ctx context.Context, name string) (*beam.Beam, error) {
	var m beamModel
	if err := s.getEntity(ctx, entityKey(prefixBeam, name), &m); err != nil {
		if isRedisNil(err) {
			return nil, wormhole.ErrBeamNotFound
		}
		return nil, fmt.Errorf("wormhole/redis: get beam: %w", err)
	}
	return fromBeamModel(&m)
}

func (s *Store) UpdateBeam(ctx context.Context, b *beam.Beam) error {
	m := toBeamModel(b)
	m.UpdatedAt = now()

	ok, err := s.replaceEntity(ctx, entityKey(prefixBeam, m.Name), m)
	if err != nil {
		return fmt.Errorf("wormhole/redis: update beam: %w", err)
	}
	if !ok {
		return wormhole.ErrBeamNotFound
	}
	return nil
}

func (s *Store) ListBeams(ctx context.Context) ([]*beam.Beam, error) {
	names, err := s.rdb.SMembers(ctx, sBeamNames).Result()
	if err != nil {
		return nil, fmt.Errorf("wormhole/redis: list beams: %w", err)
	}
	sort.Strings(names)

	result := make([]*beam.Beam, 0, len(names))
	for _, name := range names {
		b, err := s.GetBeam(ctx, name)
		if err != nil {
			if errors.Is(err, wormhole.ErrBeamNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}
