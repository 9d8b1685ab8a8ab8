// Package user defines relay participants and their administrative service.
package user

import (
	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/entity"
)

// User is a registered relay participant, addressable by nickname.
type User struct {
	entity.Entity

	// ID is the internal TypeID of the user.
	ID id.ID `json:"id"`

	// AccountID is the platform account identifier. Unique.
	AccountID int64 `json:"account_id"`

	// Nickname is the unique name used in ((nickname)) mentions.
	Nickname string `json:"nickname"`

	// HomeID is the channel where mentions render as native pings. Empty when unset.
	HomeID string `json:"home_id,omitempty"`

	// Readonly rejects every message the user authors.
	Readonly bool `json:"readonly"`

	// Restricted is recorded for administrators; it has no relay effect.
	Restricted bool `json:"restricted"`

	// Mod marks a moderator account.
	Mod bool `json:"mod"`
}
