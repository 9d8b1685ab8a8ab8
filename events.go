package wormhole

import (
	"context"

	"github.com/xraph/wormhole/message"
)

// EventKind names an inbound platform event.
type EventKind string

const (
	EventMessage EventKind = "message"
	EventEdit    EventKind = "edit"
	EventDelete  EventKind = "delete"
)

// Event is one inbound platform event. Delete events only need the
// message's ID and ChannelID.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Message message.Message `json:"message"`
}

// Start begins the event loop. Events submitted afterwards are processed
// serially per source channel, in arrival order; different channels are
// processed concurrently.
func (r *Relay) Start(ctx context.Context) {
	r.lanes.mu.Lock()
	defer r.lanes.mu.Unlock()
	if r.lanes.running {
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.lanes.cancel = cancel
	r.lanes.ctx = ctx
	r.lanes.byID = make(map[string]chan Event)
	r.lanes.running = true
}

// Stop stops accepting events and waits for queued events to finish. When
// ctx ends first, in-flight work is cancelled and Stop returns ctx's error.
func (r *Relay) Stop(ctx context.Context) error {
	r.lanes.mu.Lock()
	if !r.lanes.running {
		r.lanes.mu.Unlock()
		return nil
	}
	r.lanes.running = false
	r.lanes.mapMu.Lock()
	for _, ch := range r.lanes.byID {
		close(ch)
	}
	r.lanes.byID = nil
	r.lanes.mapMu.Unlock()
	r.lanes.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.lanes.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		r.lanes.cancel()
		<-done
	}
	r.lanes.cancel()
	return err
}

// Close stops the event loop and cancels every pending correlation expiry.
// The Relay records no new correlations afterwards.
func (r *Relay) Close(ctx context.Context) error {
	err := r.Stop(ctx)
	r.ledger.Close()
	r.metrics.SetLedgerEntries(0)
	return err
}

// Submit queues an event on its source channel's lane. It blocks while the
// lane is full, until ctx ends.
func (r *Relay) Submit(ctx context.Context, evt Event) error {
	if evt.Message.ChannelID == "" || evt.Message.ID == "" {
		return ErrInvalidEvent
	}
	switch evt.Kind {
	case EventMessage, EventEdit, EventDelete:
	default:
		return ErrInvalidEvent
	}

	r.lanes.mu.RLock()
	defer r.lanes.mu.RUnlock()
	if !r.lanes.running {
		return ErrNotRunning
	}

	lane := r.lane(evt.Message.ChannelID)
	select {
	case lane <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lane returns the queue of a source channel, starting its worker on first
// use. Callers hold lanes.mu for reading.
func (r *Relay) lane(channelID string) chan Event {
	r.lanes.mapMu.Lock()
	defer r.lanes.mapMu.Unlock()

	if ch, ok := r.lanes.byID[channelID]; ok {
		return ch
	}
	buffer := r.config.LaneBuffer
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Event, buffer)
	r.lanes.byID[channelID] = ch

	r.lanes.wg.Add(1)
	go func() {
		defer r.lanes.wg.Done()
		for evt := range ch {
			r.process(r.lanes.ctx, evt)
		}
	}()
	return ch
}

func (r *Relay) process(ctx context.Context, evt Event) {
	var (
		out Outcome
		err error
	)
	switch evt.Kind {
	case EventMessage:
		out, err = r.HandleMessage(ctx, evt.Message)
	case EventEdit:
		out, err = r.HandleEdit(ctx, evt.Message)
	case EventDelete:
		out, err = r.HandleDelete(ctx, evt.Message.ChannelID, evt.Message.ID)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "event failed",
			"kind", evt.Kind,
			"channel_id", evt.Message.ChannelID,
			"message_id", evt.Message.ID,
			"error", err,
		)
		return
	}
	r.logger.DebugContext(ctx, "event processed",
		"kind", evt.Kind,
		"channel_id", evt.Message.ChannelID,
		"message_id", evt.Message.ID,
		"state", out.State,
	)
}
