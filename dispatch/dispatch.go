// Package dispatch fans a relayed message out to its destinations and
// replays edits and deletions to the copies it produced.
//
// Every destination is handled by its own goroutine and may fail on its own;
// a failure is logged, recorded, and leaves the other destinations untouched.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/message"
	"github.com/xraph/wormhole/observability"
	"github.com/xraph/wormhole/ratelimit"
	"github.com/xraph/wormhole/resolver"
)

// Transport performs single-channel operations on the chat platform.
type Transport interface {
	// SendText posts text with attachments to a channel and returns the new message ID.
	SendText(ctx context.Context, channelID, text string, attachments []message.Attachment) (string, error)

	// EditText replaces the text of a message.
	EditText(ctx context.Context, channelID, messageID, text string) error

	// DeleteMessage deletes a message.
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// WormholeReader reads the live destination flags.
type WormholeReader interface {
	GetWormhole(ctx context.Context, channelID string) (*channel.Wormhole, error)
}

// FailureRecorder logs failed destination operations.
type FailureRecorder interface {
	Record(ctx context.Context, op failure.Op, beam, channelID, sourceID string, cause error) error
}

// DeliveryError reports the failure of one destination operation.
type DeliveryError struct {
	ChannelID string
	Op        failure.Op
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("dispatch: %s to %s: %v", e.Op, e.ChannelID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Config configures a Dispatcher.
type Config struct {
	// RateLimit bounds operations per second per destination. 0 is unlimited.
	RateLimit int
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
}

// Dispatcher delivers rendered messages to destination channels.
type Dispatcher struct {
	transport Transport
	records   WormholeReader
	failures  FailureRecorder
	limiter   *ratelimit.Limiter
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	logger    *slog.Logger
}

// New creates a Dispatcher. failures may be nil.
func New(transport Transport, records WormholeReader, failures FailureRecorder, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NewTracer()
	}
	return &Dispatcher{
		transport: transport,
		records:   records,
		failures:  failures,
		limiter:   ratelimit.New(cfg.RateLimit),
		metrics:   cfg.Metrics,
		tracer:    tracer,
		logger:    logger,
	}
}

// Request is one fan-out.
type Request struct {
	Source       message.Message
	Beam         string
	Destinations []resolver.Destination

	// EchoSource delivers a copy to the source channel too. It is ignored
	// when the source carries attachments.
	EchoSource bool

	// Render returns the text for one destination channel.
	Render func(channelID string) string
}

// Send delivers req to every eligible destination and returns the copies
// that were created, in destination order. Inactive or unbound destinations
// are skipped; failed destinations are omitted.
func (d *Dispatcher) Send(ctx context.Context, req Request) []message.Copy {
	echo := req.EchoSource && !req.Source.HasAttachments()

	results := make([]*message.Copy, len(req.Destinations))
	var wg sync.WaitGroup
	for i, dest := range req.Destinations {
		if dest.ChannelID == req.Source.ChannelID && !echo {
			continue
		}
		if !d.eligible(ctx, dest.ChannelID) {
			continue
		}

		wg.Add(1)
		go func(i int, channelID string) {
			defer wg.Done()
			text := req.Render(channelID)
			_ = d.do(ctx, failure.OpSend, req.Beam, req.Source.ID, channelID, func(ctx context.Context) error {
				copyID, err := d.transport.SendText(ctx, channelID, text, req.Source.Attachments)
				if err != nil {
					return err
				}
				results[i] = &message.Copy{ChannelID: channelID, MessageID: copyID}
				return nil
			})
		}(i, dest.ChannelID)
	}
	wg.Wait()

	copies := make([]message.Copy, 0, len(results))
	for _, c := range results {
		if c != nil {
			copies = append(copies, *c)
		}
	}
	return copies
}

// Edit replaces the text of every copy and returns how many edits succeeded.
func (d *Dispatcher) Edit(ctx context.Context, beam, sourceID string, copies []message.Copy, render func(channelID string) string) int {
	return d.each(ctx, copies, func(ctx context.Context, c message.Copy) error {
		text := render(c.ChannelID)
		return d.do(ctx, failure.OpEdit, beam, sourceID, c.ChannelID, func(ctx context.Context) error {
			return d.transport.EditText(ctx, c.ChannelID, c.MessageID, text)
		})
	})
}

// Delete removes every copy and returns how many deletions succeeded.
func (d *Dispatcher) Delete(ctx context.Context, beam, sourceID string, copies []message.Copy) int {
	return d.each(ctx, copies, func(ctx context.Context, c message.Copy) error {
		return d.do(ctx, failure.OpDelete, beam, sourceID, c.ChannelID, func(ctx context.Context) error {
			return d.transport.DeleteMessage(ctx, c.ChannelID, c.MessageID)
		})
	})
}

// DeleteOriginal deletes a source message and reports whether it succeeded.
// Failures such as missing permissions are logged and otherwise ignored.
func (d *Dispatcher) DeleteOriginal(ctx context.Context, msg message.Message) bool {
	if err := d.transport.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		d.logger.DebugContext(ctx, "dispatch: original not deleted",
			"channel_id", msg.ChannelID,
			"message_id", msg.ID,
			"error", err,
		)
		return false
	}
	return true
}

// Broadcast posts text to every active destination, including the channel
// the request came from, and returns how many posts succeeded.
func (d *Dispatcher) Broadcast(ctx context.Context, beam string, destinations []resolver.Destination, text string) int {
	copies := make([]message.Copy, 0, len(destinations))
	for _, dest := range destinations {
		if d.eligible(ctx, dest.ChannelID) {
			copies = append(copies, message.Copy{ChannelID: dest.ChannelID})
		}
	}
	return d.each(ctx, copies, func(ctx context.Context, c message.Copy) error {
		return d.do(ctx, failure.OpSend, beam, "", c.ChannelID, func(ctx context.Context) error {
			_, err := d.transport.SendText(ctx, c.ChannelID, text, nil)
			return err
		})
	})
}

// eligible re-reads the destination so a stale resolver result never
// reaches an inactive or unbound channel.
func (d *Dispatcher) eligible(ctx context.Context, channelID string) bool {
	w, err := d.records.GetWormhole(ctx, channelID)
	if err != nil {
		d.logger.DebugContext(ctx, "dispatch: destination skipped", "channel_id", channelID, "error", err)
		return false
	}
	return w.Active
}

func (d *Dispatcher) each(ctx context.Context, copies []message.Copy, fn func(context.Context, message.Copy) error) int {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, c := range copies {
		wg.Add(1)
		go func(c message.Copy) {
			defer wg.Done()
			if fn(ctx, c) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	return ok
}

// do runs one destination operation with pacing, tracing, metrics, and
// failure capture.
func (d *Dispatcher) do(ctx context.Context, op failure.Op, beam, sourceID, channelID string, fn func(context.Context) error) error {
	if err := d.limiter.Wait(ctx, channelID); err != nil {
		return d.fail(ctx, op, beam, sourceID, channelID, err)
	}

	ctx, span := d.tracer.StartDeliverySpan(ctx, string(op), channelID)
	start := time.Now()
	err := fn(ctx)
	d.metrics.RecordDelivery(string(op), err, time.Since(start))
	d.tracer.EndDeliverySpan(span, err)

	if err != nil {
		return d.fail(ctx, op, beam, sourceID, channelID, err)
	}
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, op failure.Op, beam, sourceID, channelID string, cause error) error {
	derr := &DeliveryError{ChannelID: channelID, Op: op, Err: cause}
	d.logger.WarnContext(ctx, "dispatch: delivery failed",
		"op", op,
		"beam", beam,
		"channel_id", channelID,
		"source_id", sourceID,
		"error", cause,
	)
	if d.failures != nil && !errors.Is(cause, context.Canceled) {
		_ = d.failures.Record(ctx, op, beam, channelID, sourceID, cause)
	}
	return derr
}
