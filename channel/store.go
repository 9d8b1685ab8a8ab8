package channel

import "context"

// Store defines the persistence contract for wormholes.
type Store interface {
	// CreateWormhole persists a new binding. Channel IDs are unique.
	CreateWormhole(ctx context.Context, w *Wormhole) error

	// GetWormhole returns the binding of a channel.
	GetWormhole(ctx context.Context, channelID string) (*Wormhole, error)

	// UpdateWormhole replaces a stored binding.
	UpdateWormhole(ctx context.Context, w *Wormhole) error

	// DeleteWormhole removes a binding.
	DeleteWormhole(ctx context.Context, channelID string) error

	// ListWormholes returns the bindings of a beam in creation order.
	// An empty beam name lists every binding.
	ListWormholes(ctx context.Context, beam string) ([]*Wormhole, error)

	// IncrementMessages adds one to the relayed message counter of a channel.
	IncrementMessages(ctx context.Context, channelID string) error
}
