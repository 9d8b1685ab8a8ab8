package failure

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/entity"
)

// Service manages the failure log.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new failure log service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Record logs a failed delivery. Implements dispatch.FailureRecorder.
func (svc *Service) Record(ctx context.Context, op Op, beam, channelID, sourceID string, cause error) error {
	entry := &Entry{
		Entity:    entity.New(),
		ID:        id.NewFailureID(),
		Op:        op,
		Beam:      beam,
		ChannelID: channelID,
		SourceID:  sourceID,
		FailedAt:  time.Now().UTC(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	if err := svc.store.RecordFailure(ctx, entry); err != nil {
		svc.logger.ErrorContext(ctx, "failure log: record", "channel_id", channelID, "error", err)
		return err
	}
	return nil
}

// List returns entries matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.ListFailures(ctx, opts)
}

// Get returns an entry by ID.
func (svc *Service) Get(ctx context.Context, failureID id.ID) (*Entry, error) {
	return svc.store.GetFailure(ctx, failureID)
}

// Purge removes entries older than before.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	n, err := svc.store.PurgeFailures(ctx, before)
	if err != nil {
		return 0, err
	}
	svc.logger.InfoContext(ctx, "failure log purged", "removed", n)
	return n, nil
}

// Count returns the total number of entries.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountFailures(ctx)
}
