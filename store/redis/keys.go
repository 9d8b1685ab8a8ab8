package redis

// Key prefixes for primary entity storage.
const (
	prefixBeam     = "wormhole:beam:"
	prefixWormhole = "wormhole:wh:"
	prefixUser     = "wormhole:user:"
	prefixFailure  = "wormhole:fail:"
)

// Key prefixes for unique indexes.
const (
	uniqueNickname = "wormhole:u:user:nick:" // + nickname -> account ID
)

// Key prefixes for sorted set indexes.
const (
	zWormholeAll  = "wormhole:z:wh:all"
	zWormholeBeam = "wormhole:z:wh:beam:" // + beam name
	zUserAll      = "wormhole:z:user:all"
	zFailureAll   = "wormhole:z:fail:all"
)

// Key prefixes for set indexes.
const (
	sBeamNames = "wormhole:s:beam:names"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
