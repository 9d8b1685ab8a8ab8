package beam

import "context"

// Store defines the persistence contract for beams.
type Store interface {
	// CreateBeam persists a new beam. Names are unique.
	CreateBeam(ctx context.Context, b *Beam) error

	// GetBeam returns a beam by name.
	GetBeam(ctx context.Context, name string) (*Beam, error)

	// UpdateBeam replaces a stored beam.
	UpdateBeam(ctx context.Context, b *Beam) error

	// ListBeams returns all beams ordered by name.
	ListBeams(ctx context.Context) ([]*Beam, error)
}
