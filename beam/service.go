package beam

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/attr"
	"github.com/xraph/wormhole/internal/entity"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Invalidator drops cached destination sets after a membership or policy change.
type Invalidator interface {
	Invalidate(beam string)
}

// Service provides administrative beam operations.
type Service struct {
	store       Store
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService creates a beam service. The invalidator may be nil.
func NewService(store Store, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Create registers a new, active beam administered by adminID.
func (svc *Service) Create(ctx context.Context, name string, adminID int64) (*Beam, error) {
	if !namePattern.MatchString(name) {
		return nil, &ValidationError{Field: "name", Message: "must match " + namePattern.String()}
	}

	b := &Beam{
		Entity:    entity.New(),
		ID:        id.NewBeamID(),
		Name:      name,
		Active:    true,
		AdminID:   adminID,
		Anonymity: AnonymityGuild,
		Timeout:   DefaultTimeout,
		MaxLength: DefaultMaxLength,
	}
	if err := svc.store.CreateBeam(ctx, b); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "beam created", "beam", name, "admin_id", adminID)
	return b, nil
}

// Get returns a beam by name.
func (svc *Service) Get(ctx context.Context, name string) (*Beam, error) {
	return svc.store.GetBeam(ctx, name)
}

// List returns all beams.
func (svc *Service) List(ctx context.Context) ([]*Beam, error) {
	return svc.store.ListBeams(ctx)
}

// Open activates a beam.
func (svc *Service) Open(ctx context.Context, name string) (*Beam, error) {
	return svc.Set(ctx, name, "active", "1")
}

// Close deactivates a beam. No traffic passes until it is reopened.
func (svc *Service) Close(ctx context.Context, name string) (*Beam, error) {
	return svc.Set(ctx, name, "active", "0")
}

// Set updates a single beam attribute from its textual value.
func (svc *Service) Set(ctx context.Context, name, key, value string) (*Beam, error) {
	b, err := svc.store.GetBeam(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := apply(b, key, value); err != nil {
		return nil, err
	}
	b.Touch()

	if err := svc.store.UpdateBeam(ctx, b); err != nil {
		return nil, err
	}
	if svc.invalidator != nil {
		svc.invalidator.Invalidate(name)
	}

	svc.logger.InfoContext(ctx, "beam updated", "beam", name, "key", key, "value", value)
	return b, nil
}

func apply(b *Beam, key, value string) error {
	switch key {
	case "active", "replace":
		flag, err := attr.Flag(value)
		if err != nil {
			return &ValidationError{Field: key, Message: err.Error()}
		}
		if key == "active" {
			b.Active = flag
		} else {
			b.Replace = flag
		}
	case "admin_id":
		n, err := attr.Int(value)
		if err != nil {
			return &ValidationError{Field: key, Message: err.Error()}
		}
		b.AdminID = n
	case "timeout", "max_length":
		n, err := attr.NonNegative(value)
		if err != nil {
			return &ValidationError{Field: key, Message: err.Error()}
		}
		if key == "timeout" {
			b.Timeout = int(n)
		} else {
			b.MaxLength = int(n)
		}
	case "anonymity":
		a, err := ParseAnonymity(value)
		if err != nil {
			return &ValidationError{Field: key, Message: err.Error()}
		}
		b.Anonymity = a
	default:
		return &ValidationError{Field: key, Message: "unknown attribute"}
	}
	return nil
}

// ValidationError indicates malformed administrative input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "beam validation: " + e.Field + ": " + e.Message
}
