package wormhole

import (
	"time"

	"github.com/xraph/wormhole/beam"
)

// DefaultAnnouncePrefix marks administrative broadcasts.
const DefaultAnnouncePrefix = "**WORMHOLE:** "

// Config holds the configuration for a Relay instance.
type Config struct {
	// CommandPrefix rejects messages that start with it. Empty disables the check.
	CommandPrefix string

	// LaneBuffer is the number of queued events per source channel.
	LaneBuffer int

	// DestinationRateLimit bounds operations per second per destination channel.
	// 0 is unlimited.
	DestinationRateLimit int

	// MaxLength is the body limit for beams without their own.
	MaxLength int

	// MentionFormat renders a tag at the tagged user's home channel.
	MentionFormat string

	// EmphasisFormat renders a tag everywhere else.
	EmphasisFormat string

	// AnnouncePrefix is prepended to administrative broadcasts.
	AnnouncePrefix string

	// ResolverCacheTTL bounds how long destination sets are cached.
	// 0 caches until invalidated.
	ResolverCacheTTL time.Duration

	// OwnerID is the account allowed to alter moderators.
	OwnerID int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LaneBuffer:     64,
		MaxLength:      beam.DefaultMaxLength,
		AnnouncePrefix: DefaultAnnouncePrefix,
	}
}
