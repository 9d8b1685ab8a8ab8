package channel

import (
	"context"
	"log/slog"
	"strings"

	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/attr"
	"github.com/xraph/wormhole/internal/entity"
)

// BeamReader checks that a beam exists before a channel is bound to it.
type BeamReader interface {
	GetBeam(ctx context.Context, name string) (*beam.Beam, error)
}

// Service provides administrative wormhole operations.
type Service struct {
	store       Store
	beams       BeamReader
	invalidator beam.Invalidator
	logger      *slog.Logger
}

// NewService creates a wormhole service. The invalidator may be nil.
func NewService(store Store, beams BeamReader, invalidator beam.Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		beams:       beams,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Add binds a channel to an existing beam. The new wormhole is active.
func (svc *Service) Add(ctx context.Context, beamName, channelID string) (*Wormhole, error) {
	if strings.TrimSpace(channelID) == "" {
		return nil, &ValidationError{Field: "channel_id", Message: "is required"}
	}
	if _, err := svc.beams.GetBeam(ctx, beamName); err != nil {
		return nil, err
	}

	w := &Wormhole{
		Entity:    entity.New(),
		ID:        id.NewWormholeID(),
		ChannelID: channelID,
		Beam:      beamName,
		Active:    true,
	}
	if err := svc.store.CreateWormhole(ctx, w); err != nil {
		return nil, err
	}
	svc.invalidate(beamName)

	svc.logger.InfoContext(ctx, "wormhole added", "beam", beamName, "channel_id", channelID)
	return w, nil
}

// Get returns the binding of a channel.
func (svc *Service) Get(ctx context.Context, channelID string) (*Wormhole, error) {
	return svc.store.GetWormhole(ctx, channelID)
}

// List returns the bindings of a beam, or all bindings for an empty name.
func (svc *Service) List(ctx context.Context, beamName string) ([]*Wormhole, error) {
	return svc.store.ListWormholes(ctx, beamName)
}

// Remove unbinds a channel and returns the removed binding.
func (svc *Service) Remove(ctx context.Context, channelID string) (*Wormhole, error) {
	w, err := svc.store.GetWormhole(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := svc.store.DeleteWormhole(ctx, channelID); err != nil {
		return nil, err
	}
	svc.invalidate(w.Beam)

	svc.logger.InfoContext(ctx, "wormhole removed", "beam", w.Beam, "channel_id", channelID)
	return w, nil
}

// Set updates a single wormhole attribute from its textual value.
func (svc *Service) Set(ctx context.Context, channelID, key, value string) (*Wormhole, error) {
	w, err := svc.store.GetWormhole(ctx, channelID)
	if err != nil {
		return nil, err
	}
	previous := w.Beam

	switch key {
	case "beam":
		if _, err := svc.beams.GetBeam(ctx, value); err != nil {
			return nil, err
		}
		w.Beam = value
	case "admin_id", "messages":
		n, err := attr.Int(value)
		if err != nil {
			return nil, &ValidationError{Field: key, Message: err.Error()}
		}
		if key == "admin_id" {
			w.AdminID = n
		} else {
			w.Messages = n
		}
	case "active", "readonly":
		flag, err := attr.Flag(value)
		if err != nil {
			return nil, &ValidationError{Field: key, Message: err.Error()}
		}
		if key == "active" {
			w.Active = flag
		} else {
			w.Readonly = flag
		}
	case "logo":
		w.Logo = value
	default:
		return nil, &ValidationError{Field: key, Message: "unknown attribute"}
	}
	w.Touch()

	if err := svc.store.UpdateWormhole(ctx, w); err != nil {
		return nil, err
	}
	svc.invalidate(previous)
	if w.Beam != previous {
		svc.invalidate(w.Beam)
	}

	svc.logger.InfoContext(ctx, "wormhole updated", "channel_id", channelID, "key", key, "value", value)
	return w, nil
}

func (svc *Service) invalidate(beamName string) {
	if svc.invalidator != nil {
		svc.invalidator.Invalidate(beamName)
	}
}

// ValidationError indicates malformed administrative input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "wormhole validation: " + e.Field + ": " + e.Message
}
