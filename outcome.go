package wormhole

import "github.com/xraph/wormhole/message"

// State is the terminal state an inbound event reached.
type State string

const (
	// StateRejected means the message was not eligible for relay.
	StateRejected State = "rejected"

	// StateDispatched means copies were sent and no correlation was kept.
	StateDispatched State = "dispatched"

	// StateCorrelated means copies were sent and recorded for edit/delete replay.
	StateCorrelated State = "correlated"

	// StateDropped means an edit or delete had no live correlation entry.
	StateDropped State = "dropped"

	// StateUnchanged means an edit did not change the relayed body.
	StateUnchanged State = "unchanged"

	// StateIgnored means a delete was the echo of an original removed in replace mode.
	StateIgnored State = "ignored"

	// StateReplayed means an edit or delete was applied to the stored copies.
	StateReplayed State = "replayed"
)

// Reason explains a rejection.
type Reason string

const (
	ReasonBot              Reason = "bot"
	ReasonCommand          Reason = "command"
	ReasonEmpty            Reason = "empty"
	ReasonUnbound          Reason = "unbound"
	ReasonBeamInactive     Reason = "beam_inactive"
	ReasonWormholeInactive Reason = "wormhole_inactive"
	ReasonWormholeReadonly Reason = "wormhole_readonly"
	ReasonUserReadonly     Reason = "user_readonly"
	ReasonStoreError       Reason = "store_error"
)

// Outcome reports what the relay did with one inbound event.
type Outcome struct {
	State  State
	Reason Reason `json:",omitempty"`
	Beam   string `json:",omitempty"`

	// Copies are the copies produced by a new message, or the copies an
	// edit or delete was replayed to.
	Copies []message.Copy `json:",omitempty"`

	// Applied counts successful edit or delete calls.
	Applied int `json:",omitempty"`
}

func rejected(reason Reason) Outcome {
	return Outcome{State: StateRejected, Reason: reason}
}
