package failure

import (
	"context"
	"time"

	"github.com/xraph/wormhole/id"
)

// Store defines the persistence contract for the failure log.
type Store interface {
	// RecordFailure appends an entry to the log.
	RecordFailure(ctx context.Context, entry *Entry) error

	// GetFailure returns an entry by ID.
	GetFailure(ctx context.Context, failureID id.ID) (*Entry, error)

	// ListFailures returns entries newest first, optionally filtered.
	ListFailures(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// CountFailures returns the total number of entries.
	CountFailures(ctx context.Context) (int64, error)

	// PurgeFailures deletes entries that failed before the threshold.
	PurgeFailures(ctx context.Context, before time.Time) (int64, error)
}
