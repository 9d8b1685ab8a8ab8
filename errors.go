package wormhole

import (
	"errors"

	"github.com/xraph/wormhole/ledger"
	"github.com/xraph/wormhole/user"
)

// Sentinel errors returned by wormhole operations and stores.
var (
	// ErrNoStore is returned when a Relay is created without a record store.
	ErrNoStore = errors.New("wormhole: store is required")

	// ErrNoTransport is returned when a Relay is created without a destination transport.
	ErrNoTransport = errors.New("wormhole: transport is required")

	// ErrBeamNotFound is returned when a beam cannot be found.
	ErrBeamNotFound = errors.New("wormhole: beam not found")

	// ErrBeamExists is returned when creating a beam whose name is taken.
	ErrBeamExists = errors.New("wormhole: beam already exists")

	// ErrWormholeNotFound is returned when a channel is not bound to any beam.
	ErrWormholeNotFound = errors.New("wormhole: wormhole not found")

	// ErrWormholeExists is returned when binding a channel that is already bound.
	ErrWormholeExists = errors.New("wormhole: channel is already a wormhole")

	// ErrUserNotFound is returned when a user profile cannot be found.
	ErrUserNotFound = errors.New("wormhole: user not found")

	// ErrUserExists is returned when registering an account twice.
	ErrUserExists = errors.New("wormhole: user already exists")

	// ErrNicknameTaken is returned when a nickname is already used by another user.
	ErrNicknameTaken = errors.New("wormhole: nickname already taken")

	// ErrFailureNotFound is returned when a failure log entry cannot be found.
	ErrFailureNotFound = errors.New("wormhole: failure entry not found")

	// ErrCorrelationNotFound is returned when no live correlation entry exists for a source message.
	ErrCorrelationNotFound = ledger.ErrNotFound

	// ErrForbidden is returned when an administrative actor may not alter the target account.
	ErrForbidden = user.ErrForbidden

	// ErrNotRunning is returned when an event is submitted while the event loop is stopped.
	ErrNotRunning = errors.New("wormhole: event loop is not running")

	// ErrInvalidEvent is returned when a submitted event lacks its kind or channel.
	ErrInvalidEvent = errors.New("wormhole: invalid event")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("wormhole: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("wormhole: migration failed")
)
