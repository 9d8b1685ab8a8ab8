package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/dispatch"
	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/message"
	"github.com/xraph/wormhole/resolver"
	"github.com/xraph/wormhole/store/memory"
	"github.com/xraph/wormhole/transport/memtransport"
)

func ctx() context.Context { return context.Background() }

type fixture struct {
	store     *memory.Store
	channels  *channel.Service
	transport *memtransport.Transport
	failures  *failure.Service
	d         *dispatch.Dispatcher
}

func setup(t *testing.T, channelIDs ...string) *fixture {
	t.Helper()
	store := memory.New()
	if _, err := beam.NewService(store, nil, nil).Create(ctx(), "general", 1); err != nil {
		t.Fatal(err)
	}
	channels := channel.NewService(store, store, nil, nil)
	for _, ch := range channelIDs {
		if _, err := channels.Add(ctx(), "general", ch); err != nil {
			t.Fatal(err)
		}
	}
	tr := memtransport.New()
	failures := failure.NewService(store, nil)
	return &fixture{
		store:     store,
		channels:  channels,
		transport: tr,
		failures:  failures,
		d:         dispatch.New(tr, store, failures, dispatch.Config{}, nil),
	}
}

func dests(ids ...string) []resolver.Destination {
	out := make([]resolver.Destination, len(ids))
	for i, id := range ids {
		out[i] = resolver.Destination{ChannelID: id}
	}
	return out
}

func echo(channelID string) string { return "to " + channelID }

func TestSendSkipsSource(t *testing.T) {
	f := setup(t, "A", "B", "C")

	copies := f.d.Send(ctx(), dispatch.Request{
		Source:       message.Message{ID: "m1", ChannelID: "A", Content: "hi"},
		Beam:         "general",
		Destinations: dests("A", "B", "C"),
		Render:       echo,
	})
	if len(copies) != 2 || copies[0].ChannelID != "B" || copies[1].ChannelID != "C" {
		t.Fatalf("unexpected copies: %v", copies)
	}
	if len(f.transport.Messages("A")) != 0 {
		t.Fatal("source channel must not receive a copy")
	}
	if got := f.transport.Messages("B")[0].Text; got != "to B" {
		t.Fatalf("rendered text: got %q", got)
	}
}

func TestSendEchoSource(t *testing.T) {
	f := setup(t, "A", "B")

	copies := f.d.Send(ctx(), dispatch.Request{
		Source:       message.Message{ID: "m1", ChannelID: "A", Content: "hi"},
		Beam:         "general",
		Destinations: dests("A", "B"),
		EchoSource:   true,
		Render:       echo,
	})
	if len(copies) != 2 || copies[0].ChannelID != "A" {
		t.Fatalf("expected echo to the source first, got %v", copies)
	}

	// Attachments always exclude the source.
	copies = f.d.Send(ctx(), dispatch.Request{
		Source: message.Message{
			ID:          "m2",
			ChannelID:   "A",
			Attachments: []message.Attachment{{Filename: "cat.png", URL: "https://cdn.example.com/cat.png"}},
		},
		Beam:         "general",
		Destinations: dests("A", "B"),
		EchoSource:   true,
		Render:       echo,
	})
	if len(copies) != 1 || copies[0].ChannelID != "B" {
		t.Fatalf("expected only B, got %v", copies)
	}
	posted := f.transport.Messages("B")
	if len(posted[len(posted)-1].Attachments) != 1 {
		t.Fatal("attachments must be forwarded")
	}
}

func TestSendSkipsInactiveAndUnbound(t *testing.T) {
	f := setup(t, "A", "B", "C")
	if _, err := f.channels.Set(ctx(), "B", "active", "0"); err != nil {
		t.Fatal(err)
	}

	copies := f.d.Send(ctx(), dispatch.Request{
		Source:       message.Message{ID: "m1", ChannelID: "A"},
		Beam:         "general",
		Destinations: dests("A", "B", "C", "ghost"),
		Render:       echo,
	})
	if len(copies) != 1 || copies[0].ChannelID != "C" {
		t.Fatalf("expected only C, got %v", copies)
	}
	if len(f.transport.Messages("B")) != 0 {
		t.Fatal("inactive destination received a copy")
	}
}

func TestSendPartialFailure(t *testing.T) {
	f := setup(t, "A", "B", "C", "D")
	f.transport.Fail("C", errors.New("missing permissions"))

	copies := f.d.Send(ctx(), dispatch.Request{
		Source:       message.Message{ID: "m1", ChannelID: "A"},
		Beam:         "general",
		Destinations: dests("A", "B", "C", "D"),
		Render:       echo,
	})
	if len(copies) != 2 || copies[0].ChannelID != "B" || copies[1].ChannelID != "D" {
		t.Fatalf("expected B and D, got %v", copies)
	}

	entries, err := f.failures.List(ctx(), failure.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(entries))
	}
	if entries[0].ChannelID != "C" || entries[0].Op != failure.OpSend || entries[0].SourceID != "m1" {
		t.Fatalf("unexpected failure entry: %+v", entries[0])
	}
}

func TestEditAndDelete(t *testing.T) {
	f := setup(t, "A", "B", "C")
	copies := f.d.Send(ctx(), dispatch.Request{
		Source:       message.Message{ID: "m1", ChannelID: "A"},
		Beam:         "general",
		Destinations: dests("A", "B", "C"),
		Render:       echo,
	})

	f.transport.Fail("C", errors.New("gone"))
	n := f.d.Edit(ctx(), "general", "m1", copies, func(ch string) string { return "edited " + ch })
	if n != 1 {
		t.Fatalf("edits: got %d, want 1", n)
	}
	if got := f.transport.Messages("B")[0].Text; got != "edited B" {
		t.Fatalf("edited text: got %q", got)
	}

	f.transport.Fail("C", nil)
	if n := f.d.Delete(ctx(), "general", "m1", copies); n != 2 {
		t.Fatalf("deletes: got %d, want 2", n)
	}
	if len(f.transport.Messages("B"))+len(f.transport.Messages("C")) != 0 {
		t.Fatal("copies were not deleted")
	}
}

func TestDeleteOriginal(t *testing.T) {
	f := setup(t, "A")

	if !f.d.DeleteOriginal(ctx(), message.Message{ID: "m1", ChannelID: "A"}) {
		t.Fatal("expected deletion to succeed")
	}
	f.transport.Fail("A", errors.New("forbidden"))
	if f.d.DeleteOriginal(ctx(), message.Message{ID: "m2", ChannelID: "A"}) {
		t.Fatal("expected deletion to fail quietly")
	}
	if count, _ := f.failures.Count(ctx()); count != 0 {
		t.Fatal("original deletion failures are not delivery failures")
	}
}

func TestBroadcastIncludesEveryActive(t *testing.T) {
	f := setup(t, "A", "B", "C")
	_, _ = f.channels.Set(ctx(), "C", "active", "0")

	if n := f.d.Broadcast(ctx(), "general", dests("A", "B", "C"), "**WORMHOLE:** hello"); n != 2 {
		t.Fatalf("broadcast: got %d, want 2", n)
	}
	if len(f.transport.Messages("A")) != 1 || len(f.transport.Messages("C")) != 0 {
		t.Fatal("broadcast must reach every active destination and skip inactive ones")
	}
}

func TestDeliveryErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := error(&dispatch.DeliveryError{ChannelID: "A", Op: failure.OpSend, Err: cause})
	if !errors.Is(err, cause) {
		t.Fatal("DeliveryError should unwrap to its cause")
	}
}
