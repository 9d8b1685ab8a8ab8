package wormhole

import "github.com/xraph/wormhole/internal/entity"

// Entity is the timestamp pair embedded by beams, wormholes, users and failure records.
type Entity = entity.Entity
