// Package memtransport provides an in-memory chat transport that records
// every operation. It is used by tests and by local runs without a gateway.
package memtransport

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/xraph/wormhole/dispatch"
	"github.com/xraph/wormhole/message"
)

// compile-time interface check.
var _ dispatch.Transport = (*Transport)(nil)

// ErrUnknownMessage is returned when editing a message the transport never posted.
var ErrUnknownMessage = errors.New("memtransport: unknown message")

// Operation kinds.
const (
	OpSend   = "send"
	OpEdit   = "edit"
	OpDelete = "delete"
)

// Op is one recorded transport call.
type Op struct {
	Kind        string
	ChannelID   string
	MessageID   string
	Text        string
	Attachments []message.Attachment
}

// Posted is a message currently visible in a channel.
type Posted struct {
	ID          string
	ChannelID   string
	Text        string
	Attachments []message.Attachment
}

// Transport is a recording, in-memory implementation of dispatch.Transport.
type Transport struct {
	mu      sync.Mutex
	seq     int
	posted  map[string]*Posted // keyed by message ID
	order   []string
	ops     []Op
	failing map[string]error // keyed by channel ID
}

// New creates an empty transport.
func New() *Transport {
	return &Transport{
		posted:  make(map[string]*Posted),
		failing: make(map[string]error),
	}
}

// SendText posts text to a channel.
func (t *Transport) SendText(_ context.Context, channelID, text string, attachments []message.Attachment) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	msgID := channelID + "-" + strconv.Itoa(t.seq)
	t.ops = append(t.ops, Op{Kind: OpSend, ChannelID: channelID, MessageID: msgID, Text: text, Attachments: attachments})
	if err := t.failing[channelID]; err != nil {
		return "", err
	}

	t.posted[msgID] = &Posted{ID: msgID, ChannelID: channelID, Text: text, Attachments: attachments}
	t.order = append(t.order, msgID)
	return msgID, nil
}

// EditText replaces the text of a posted message.
func (t *Transport) EditText(_ context.Context, channelID, messageID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ops = append(t.ops, Op{Kind: OpEdit, ChannelID: channelID, MessageID: messageID, Text: text})
	if err := t.failing[channelID]; err != nil {
		return err
	}

	p, ok := t.posted[messageID]
	if !ok || p.ChannelID != channelID {
		return ErrUnknownMessage
	}
	p.Text = text
	return nil
}

// DeleteMessage removes a message. Deleting a message the transport did not
// post succeeds, since inbound originals live on the platform.
func (t *Transport) DeleteMessage(_ context.Context, channelID, messageID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ops = append(t.ops, Op{Kind: OpDelete, ChannelID: channelID, MessageID: messageID})
	if err := t.failing[channelID]; err != nil {
		return err
	}
	delete(t.posted, messageID)
	return nil
}

// Fail makes every later operation on channelID return err. A nil err clears it.
func (t *Transport) Fail(channelID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.failing, channelID)
		return
	}
	t.failing[channelID] = err
}

// Messages returns the messages currently visible in a channel, oldest first.
func (t *Transport) Messages(channelID string) []Posted {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Posted
	for _, msgID := range t.order {
		if p, ok := t.posted[msgID]; ok && p.ChannelID == channelID {
			out = append(out, *p)
		}
	}
	return out
}

// Ops returns every recorded call.
func (t *Transport) Ops() []Op {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Op(nil), t.ops...)
}

// Count returns how many calls of kind were recorded.
func (t *Transport) Count(kind string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, op := range t.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls. Posted messages are kept.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops = nil
}
