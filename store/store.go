// Package store defines the composite Store interface for all wormhole persistence.
//
// Each record package defines its own store interface, and the aggregate
// Store composes them all.
package store

import (
	"context"

	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/user"
)

// Store is the aggregate persistence interface.
type Store interface {
	beam.Store
	channel.Store
	user.Store
	failure.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
