// Package beam defines relay groups and their administrative service.
package beam

import (
	"fmt"

	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/entity"
)

const (
	// DefaultMaxLength is the body length limit applied to new beams.
	DefaultMaxLength = 1024

	// DefaultTimeout is the correlation retention window, in seconds, of new beams.
	DefaultTimeout = 60
)

// Anonymity controls how much author-identifying text is prefixed to relayed content.
type Anonymity string

const (
	// AnonymityNone prefixes nothing.
	AnonymityNone Anonymity = "none"

	// AnonymityGuild prefixes the originating guild (or the wormhole logo).
	AnonymityGuild Anonymity = "guild"

	// AnonymityFull is reserved; it prefixes nothing.
	AnonymityFull Anonymity = "full"
)

// ParseAnonymity validates an anonymity policy name.
func ParseAnonymity(s string) (Anonymity, error) {
	switch a := Anonymity(s); a {
	case AnonymityNone, AnonymityGuild, AnonymityFull:
		return a, nil
	default:
		return "", fmt.Errorf("options are: %s, %s, %s", AnonymityNone, AnonymityGuild, AnonymityFull)
	}
}

// Beam is a named relay group. Its policy is shared by every bound wormhole.
type Beam struct {
	entity.Entity

	// ID is the internal TypeID of the beam.
	ID id.ID `json:"id"`

	// Name is the unique, immutable beam identifier.
	Name string `json:"name"`

	// Active gates all traffic through the beam.
	Active bool `json:"active"`

	// AdminID is the platform account that administers the beam.
	AdminID int64 `json:"admin_id"`

	// Anonymity is the author prefix policy.
	Anonymity Anonymity `json:"anonymity"`

	// Replace deletes the original message and reposts it when set.
	Replace bool `json:"replace"`

	// Timeout is the correlation retention window in seconds. 0 disables edit/delete replay.
	Timeout int `json:"timeout"`

	// MaxLength is the hard cut applied to relayed bodies, in runes. 0 uses the relay default.
	MaxLength int `json:"max_length"`
}
