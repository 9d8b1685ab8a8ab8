// Package failure keeps a log of deliveries that could not be applied to a
// destination. Entries are informational; they are never retried.
package failure

import (
	"time"

	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/entity"
)

// Op names the delivery operation that failed.
type Op string

const (
	OpSend   Op = "send"
	OpEdit   Op = "edit"
	OpDelete Op = "delete"
)

// Entry represents one failed delivery to one destination.
type Entry struct {
	entity.Entity

	// ID is the unique TypeID for this entry.
	ID id.ID `json:"id"`

	// Op is the failed operation.
	Op Op `json:"op"`

	// Beam is the beam the source message travelled through.
	Beam string `json:"beam"`

	// ChannelID is the destination channel.
	ChannelID string `json:"channel_id"`

	// SourceID is the platform ID of the source message.
	SourceID string `json:"source_id"`

	// Error is the transport error text.
	Error string `json:"error"`

	// FailedAt is when the delivery failed.
	FailedAt time.Time `json:"failed_at"`
}

// ListOpts configures filtering and pagination for failure listing.
type ListOpts struct {
	Offset    int
	Limit     int
	Beam      string
	ChannelID string
	From      *time.Time
	To        *time.Time
}

// Match reports whether e passes the filters of opts. Pagination is not applied.
func (opts ListOpts) Match(e *Entry) bool {
	if opts.Beam != "" && e.Beam != opts.Beam {
		return false
	}
	if opts.ChannelID != "" && e.ChannelID != opts.ChannelID {
		return false
	}
	if opts.From != nil && e.FailedAt.Before(*opts.From) {
		return false
	}
	if opts.To != nil && e.FailedAt.After(*opts.To) {
		return false
	}
	return true
}
