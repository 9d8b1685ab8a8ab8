// Package channel defines wormholes, the bindings of chat channels to beams.
package channel

import (
	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/entity"
)

// Wormhole binds one chat channel to one beam.
type Wormhole struct {
	entity.Entity

	// ID is the internal TypeID of the binding.
	ID id.ID `json:"id"`

	// ChannelID is the platform channel identifier. A channel binds to at most one beam.
	ChannelID string `json:"channel_id"`

	// Beam is the name of the beam this channel belongs to.
	Beam string `json:"beam"`

	// AdminID is the local administrator account.
	AdminID int64 `json:"admin_id"`

	// Active gates both inbound and outbound traffic.
	Active bool `json:"active"`

	// Readonly rejects inbound traffic; the channel still receives copies.
	Readonly bool `json:"readonly"`

	// Logo replaces the guild name in author prefixes when set.
	Logo string `json:"logo,omitempty"`

	// Messages counts messages relayed from this channel.
	Messages int64 `json:"messages"`
}
