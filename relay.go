package wormhole

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/dispatch"
	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/ledger"
	"github.com/xraph/wormhole/message"
	"github.com/xraph/wormhole/observability"
	"github.com/xraph/wormhole/resolver"
	"github.com/xraph/wormhole/store"
	"github.com/xraph/wormhole/transform"
	"github.com/xraph/wormhole/user"
)

// wireServices initializes the internal services after options have been applied.
func (r *Relay) wireServices() {
	if r.tracer == nil {
		r.tracer = observability.NewTracer()
	}

	r.resolver = resolver.New(r.store, resolver.Config{
		CacheTTL: r.config.ResolverCacheTTL,
	}, r.metrics, r.logger)

	r.transformer = transform.New(transform.Config{
		MentionFormat:  r.config.MentionFormat,
		EmphasisFormat: r.config.EmphasisFormat,
		MaxLength:      r.config.MaxLength,
	})

	r.failureSvc = failure.NewService(r.store, r.logger)

	r.dispatcher = dispatch.New(r.transport, r.store, r.failureSvc, dispatch.Config{
		RateLimit: r.config.DestinationRateLimit,
		Metrics:   r.metrics,
		Tracer:    r.tracer,
	}, r.logger)

	r.ledger = ledger.New(
		ledger.WithClock(r.now),
		ledger.WithLogger(r.logger),
		ledger.WithExpireHook(func(ledger.Entry) {
			r.metrics.SetLedgerEntries(r.ledger.Len())
		}),
	)

	r.beamSvc = beam.NewService(r.store, r.resolver, r.logger)
	r.channelSvc = channel.NewService(r.store, r.store, r.resolver, r.logger)
	r.userSvc = user.NewService(r.store, r.config.OwnerID, r.logger)
}

// HandleMessage relays a new message from a bound channel.
//
// The critical path:
//  1. Check eligibility (author, body, wormhole and beam flags). Rejections are silent.
//  2. Resolve the beam's destinations.
//  3. In replace mode, delete the original so its copy can stand in for it.
//  4. Render the body once per destination and fan out.
//  5. Count the message and correlate the copies for the beam's timeout.
func (r *Relay) HandleMessage(ctx context.Context, msg message.Message) (out Outcome, err error) {
	ctx, span := r.tracer.StartRelaySpan(ctx, string(EventMessage), msg.ChannelID, msg.ID)
	defer func() {
		r.tracer.EndRelaySpan(span, out.Beam, string(out.State), len(out.Copies), err)
	}()

	b, source, reason := r.admit(ctx, msg)
	if reason != "" {
		r.metrics.Rejected(string(reason))
		r.logger.DebugContext(ctx, "message rejected",
			"channel_id", msg.ChannelID,
			"message_id", msg.ID,
			"reason", reason,
		)
		return rejected(reason), nil
	}

	destinations, err := r.resolver.Resolve(ctx, b.Name)
	if err != nil {
		r.logger.ErrorContext(ctx, "resolve destinations", "beam", b.Name, "error", err)
		return rejected(ReasonStoreError), nil
	}

	replaced := false
	if b.Replace && !msg.HasAttachments() {
		replaced = r.dispatcher.DeleteOriginal(ctx, msg)
	}

	body := transform.Truncate(msg.Content, r.transformer.Limit(b))
	users := transform.Lookup(ctx, r.store, body)

	copies := r.dispatcher.Send(ctx, dispatch.Request{
		Source:       msg,
		Beam:         b.Name,
		Destinations: destinations,
		EchoSource:   replaced,
		Render: func(channelID string) string {
			return r.transformer.Render(transform.Input{
				Body:        body,
				Destination: channelID,
				Beam:        b,
				Source:      source,
				Guild:       msg.GuildName,
				Users:       users,
			})
		},
	})

	if err := r.store.IncrementMessages(ctx, msg.ChannelID); err != nil {
		r.logger.WarnContext(ctx, "increment message counter", "channel_id", msg.ChannelID, "error", err)
	}
	r.metrics.Relayed(b.Name)

	out = Outcome{State: StateDispatched, Beam: b.Name, Copies: copies}
	recorded := r.ledger.Record(ledger.Entry{
		SourceID:      msg.ID,
		SourceChannel: msg.ChannelID,
		Beam:          b.Name,
		Content:       body,
		Copies:        copies,
		Replaced:      replaced,
	}, time.Duration(b.Timeout)*time.Second)
	if recorded {
		out.State = StateCorrelated
		r.metrics.SetLedgerEntries(r.ledger.Len())
	}

	r.logger.DebugContext(ctx, "message relayed",
		"beam", b.Name,
		"channel_id", msg.ChannelID,
		"message_id", msg.ID,
		"copies", len(copies),
		"correlated", recorded,
	)
	return out, nil
}

// admit applies the relay policy to an inbound message. It returns a
// non-empty reason when the message must not be relayed.
func (r *Relay) admit(ctx context.Context, msg message.Message) (*beam.Beam, *channel.Wormhole, Reason) {
	switch {
	case msg.Bot:
		return nil, nil, ReasonBot
	case r.config.CommandPrefix != "" && strings.HasPrefix(msg.Content, r.config.CommandPrefix):
		return nil, nil, ReasonCommand
	case msg.Content == "" && !msg.HasAttachments():
		return nil, nil, ReasonEmpty
	}

	w, err := r.store.GetWormhole(ctx, msg.ChannelID)
	if err != nil {
		return nil, nil, r.storeReason(ctx, "wormhole", err)
	}
	b, err := r.store.GetBeam(ctx, w.Beam)
	if err != nil {
		return nil, nil, r.storeReason(ctx, "beam", err)
	}

	switch {
	case !b.Active:
		return nil, nil, ReasonBeamInactive
	case !w.Active:
		return nil, nil, ReasonWormholeInactive
	case w.Readonly:
		return nil, nil, ReasonWormholeReadonly
	}

	author, err := r.store.GetUser(ctx, msg.AuthorID)
	switch {
	case errors.Is(err, ErrUserNotFound):
	case err != nil:
		return nil, nil, r.storeReason(ctx, "user", err)
	case author.Readonly:
		return nil, nil, ReasonUserReadonly
	}

	return b, w, ""
}

func (r *Relay) storeReason(ctx context.Context, record string, err error) Reason {
	if errors.Is(err, ErrWormholeNotFound) || errors.Is(err, ErrBeamNotFound) {
		return ReasonUnbound
	}
	r.logger.ErrorContext(ctx, "eligibility lookup failed", "record", record, "error", err)
	return ReasonStoreError
}

// HandleEdit replays an edit of a relayed message to its copies. Edits of
// messages without a live correlation entry, and edits that leave the
// relayed body unchanged, make no outbound calls.
func (r *Relay) HandleEdit(ctx context.Context, msg message.Message) (out Outcome, err error) {
	ctx, span := r.tracer.StartRelaySpan(ctx, string(EventEdit), msg.ChannelID, msg.ID)
	defer func() {
		r.tracer.EndRelaySpan(span, out.Beam, string(out.State), out.Applied, err)
	}()

	entry, err := r.ledger.Lookup(msg.ID)
	if err != nil || (msg.ChannelID != "" && entry.SourceChannel != msg.ChannelID) {
		return Outcome{State: StateDropped}, nil
	}

	b, err := r.store.GetBeam(ctx, entry.Beam)
	if err != nil {
		r.logger.WarnContext(ctx, "edit: beam lookup", "beam", entry.Beam, "error", err)
		return Outcome{State: StateDropped, Beam: entry.Beam, Reason: ReasonStoreError}, nil
	}

	body := transform.Truncate(msg.Content, r.transformer.Limit(b))
	if body == entry.Content {
		return Outcome{State: StateUnchanged, Beam: b.Name}, nil
	}

	source, err := r.store.GetWormhole(ctx, entry.SourceChannel)
	if err != nil {
		source = nil
	}
	users := transform.Lookup(ctx, r.store, body)

	applied := r.dispatcher.Edit(ctx, b.Name, msg.ID, entry.Copies, func(channelID string) string {
		return r.transformer.Render(transform.Input{
			Body:        body,
			Destination: channelID,
			Beam:        b,
			Source:      source,
			Guild:       msg.GuildName,
			Users:       users,
		})
	})
	if err := r.ledger.SetContent(msg.ID, body); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		r.logger.WarnContext(ctx, "edit: update ledger", "message_id", msg.ID, "error", err)
	}

	return Outcome{State: StateReplayed, Beam: b.Name, Copies: entry.Copies, Applied: applied}, nil
}

// HandleDelete deletes the copies of a relayed message and forgets its
// correlation immediately.
func (r *Relay) HandleDelete(ctx context.Context, channelID, messageID string) (out Outcome, err error) {
	ctx, span := r.tracer.StartRelaySpan(ctx, string(EventDelete), channelID, messageID)
	defer func() {
		r.tracer.EndRelaySpan(span, out.Beam, string(out.State), out.Applied, err)
	}()

	entry, err := r.ledger.Lookup(messageID)
	if err != nil || (channelID != "" && entry.SourceChannel != channelID) {
		return Outcome{State: StateDropped}, nil
	}
	if entry.Replaced {
		return Outcome{State: StateIgnored, Beam: entry.Beam}, nil
	}

	removed, ok := r.ledger.Remove(messageID)
	if !ok {
		return Outcome{State: StateDropped}, nil
	}
	r.metrics.SetLedgerEntries(r.ledger.Len())

	applied := r.dispatcher.Delete(ctx, removed.Beam, messageID, removed.Copies)
	return Outcome{State: StateReplayed, Beam: removed.Beam, Copies: removed.Copies, Applied: applied}, nil
}

// Announce broadcasts an administrative notice to every active wormhole of
// a beam and returns how many channels received it. Announcements are not
// correlated.
func (r *Relay) Announce(ctx context.Context, beamName, text string) (int, error) {
	if _, err := r.store.GetBeam(ctx, beamName); err != nil {
		return 0, err
	}
	destinations, err := r.resolver.Resolve(ctx, beamName)
	if err != nil {
		return 0, fmt.Errorf("wormhole: announce: %w", err)
	}
	return r.dispatcher.Broadcast(ctx, beamName, destinations, r.config.AnnouncePrefix+text), nil
}

// Beams returns the beam management service.
func (r *Relay) Beams() *beam.Service {
	return r.beamSvc
}

// Wormholes returns the wormhole management service.
func (r *Relay) Wormholes() *channel.Service {
	return r.channelSvc
}

// Users returns the user management service.
func (r *Relay) Users() *user.Service {
	return r.userSvc
}

// Failures returns the failure log service.
func (r *Relay) Failures() *failure.Service {
	return r.failureSvc
}

// Resolver returns the destination resolver.
func (r *Relay) Resolver() *resolver.Resolver {
	return r.resolver
}

// Ledger returns the correlation ledger.
func (r *Relay) Ledger() *ledger.Ledger {
	return r.ledger
}

// Store returns the underlying store.
func (r *Relay) Store() store.Store {
	return r.store
}
