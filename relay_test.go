package wormhole_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/message"
	"github.com/xraph/wormhole/store/memory"
	"github.com/xraph/wormhole/transport/memtransport"
)

func ctx() context.Context { return context.Background() }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	r         *wormhole.Relay
	store     *memory.Store
	transport *memtransport.Transport
	clock     *clock
}

// setup creates beam "general" (timeout 30s, no prefix) bound to the given channels.
func setup(t *testing.T, channels ...string) *fixture {
	t.Helper()
	s := memory.New()
	tr := memtransport.New()
	c := &clock{now: time.Unix(1_700_000_000, 0)}

	r, err := wormhole.New(
		wormhole.WithStore(s),
		wormhole.WithTransport(tr),
		wormhole.WithClock(c.Now),
		wormhole.WithCommandPrefix("~"),
		wormhole.WithOwnerID(1),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close(ctx()) })

	if _, err := r.Beams().Create(ctx(), "general", 1); err != nil {
		t.Fatal(err)
	}
	mustSet(t, r, "timeout", "30")
	mustSet(t, r, "anonymity", "none")
	for _, ch := range channels {
		if _, err := r.Wormholes().Add(ctx(), "general", ch); err != nil {
			t.Fatal(err)
		}
	}
	return &fixture{r: r, store: s, transport: tr, clock: c}
}

func mustSet(t *testing.T, r *wormhole.Relay, key, value string) {
	t.Helper()
	if _, err := r.Beams().Set(ctx(), "general", key, value); err != nil {
		t.Fatal(err)
	}
}

func msg(id, channelID, content string) message.Message {
	return message.Message{
		ID:         id,
		ChannelID:  channelID,
		AuthorID:   100,
		AuthorName: "someone",
		GuildName:  "Guild " + channelID,
		Content:    content,
	}
}

func texts(posted []memtransport.Posted) []string {
	out := make([]string, len(posted))
	for i, p := range posted {
		out[i] = p.Text
	}
	return out
}

func TestNewRequiresStoreAndTransport(t *testing.T) {
	if _, err := wormhole.New(wormhole.WithTransport(memtransport.New())); !errors.Is(err, wormhole.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if _, err := wormhole.New(wormhole.WithStore(memory.New())); !errors.Is(err, wormhole.ErrNoTransport) {
		t.Fatalf("expected ErrNoTransport, got %v", err)
	}
}

func TestGeneralScenario(t *testing.T) {
	f := setup(t, "A", "B")

	out, err := f.r.HandleMessage(ctx(), msg("m1", "A", "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != wormhole.StateCorrelated {
		t.Fatalf("state: got %q", out.State)
	}
	if len(f.transport.Messages("A")) != 0 {
		t.Fatal("source channel must not receive a copy")
	}
	if got := texts(f.transport.Messages("B")); len(got) != 1 || got[0] != "hi" {
		t.Fatalf("B: got %v", got)
	}

	// An edit within the window updates the copy.
	f.clock.Advance(10 * time.Second)
	out, err = f.r.HandleEdit(ctx(), msg("m1", "A", "hi there"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != wormhole.StateReplayed || out.Applied != 1 {
		t.Fatalf("edit outcome: %+v", out)
	}
	if got := texts(f.transport.Messages("B")); got[0] != "hi there" {
		t.Fatalf("B after edit: got %v", got)
	}

	// After the window the same edit is a no-op.
	f.clock.Advance(21 * time.Second)
	f.transport.Reset()
	out, _ = f.r.HandleEdit(ctx(), msg("m1", "A", "hi again"))
	if out.State != wormhole.StateDropped {
		t.Fatalf("expected dropped edit, got %q", out.State)
	}
	if n := f.transport.Count(memtransport.OpEdit); n != 0 {
		t.Fatalf("expected no edit calls, got %d", n)
	}
}

func TestReadonlyUserRejected(t *testing.T) {
	f := setup(t, "A", "B")
	if _, err := f.r.Users().Add(ctx(), 100, "someone", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.r.Users().Set(ctx(), 1, 100, "readonly", "1"); err != nil {
		t.Fatal(err)
	}
	mustSet(t, f.r, "replace", "1")

	out, err := f.r.HandleMessage(ctx(), msg("m1", "A", "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != wormhole.StateRejected || out.Reason != wormhole.ReasonUserReadonly {
		t.Fatalf("outcome: %+v", out)
	}
	if ops := f.transport.Ops(); len(ops) != 0 {
		t.Fatalf("expected no transport calls, got %v", ops)
	}
}

func TestInactiveBeamRejected(t *testing.T) {
	f := setup(t, "A", "B")
	if _, err := f.r.Beams().Close(ctx(), "general"); err != nil {
		t.Fatal(err)
	}

	for _, ch := range []string{"A", "B"} {
		out, _ := f.r.HandleMessage(ctx(), msg("m-"+ch, ch, "hi"))
		if out.Reason != wormhole.ReasonBeamInactive {
			t.Fatalf("%s: expected beam_inactive, got %+v", ch, out)
		}
	}
	if len(f.transport.Ops()) != 0 {
		t.Fatal("closed beam must not relay")
	}
}

func TestWormholeFlagsRejected(t *testing.T) {
	f := setup(t, "A", "B")
	_, _ = f.r.Wormholes().Set(ctx(), "A", "readonly", "1")
	_, _ = f.r.Wormholes().Set(ctx(), "B", "active", "0")

	if out, _ := f.r.HandleMessage(ctx(), msg("m1", "A", "hi")); out.Reason != wormhole.ReasonWormholeReadonly {
		t.Fatalf("A: got %+v", out)
	}
	if out, _ := f.r.HandleMessage(ctx(), msg("m2", "B", "hi")); out.Reason != wormhole.ReasonWormholeInactive {
		t.Fatalf("B: got %+v", out)
	}
	if out, _ := f.r.HandleMessage(ctx(), msg("m3", "Z", "hi")); out.Reason != wormhole.ReasonUnbound {
		t.Fatalf("Z: got %+v", out)
	}
}

func TestReadonlyDestinationStillReceives(t *testing.T) {
	f := setup(t, "A", "B")
	_, _ = f.r.Wormholes().Set(ctx(), "B", "readonly", "1")

	_, _ = f.r.HandleMessage(ctx(), msg("m1", "A", "hi"))
	if len(f.transport.Messages("B")) != 1 {
		t.Fatal("readonly destination should still receive copies")
	}
}

func TestBotAndCommandRejected(t *testing.T) {
	f := setup(t, "A", "B")

	bot := msg("m1", "A", "beep")
	bot.Bot = true
	if out, _ := f.r.HandleMessage(ctx(), bot); out.Reason != wormhole.ReasonBot {
		t.Fatalf("bot: got %+v", out)
	}
	if out, _ := f.r.HandleMessage(ctx(), msg("m2", "A", "~wormhole link")); out.Reason != wormhole.ReasonCommand {
		t.Fatalf("command: got %+v", out)
	}
	if out, _ := f.r.HandleMessage(ctx(), msg("m3", "A", "")); out.Reason != wormhole.ReasonEmpty {
		t.Fatalf("empty: got %+v", out)
	}
}

func TestInactiveDestinationSkipped(t *testing.T) {
	f := setup(t, "A", "B", "C")

	// Warm the resolver cache, then deactivate C behind it.
	_, _ = f.r.HandleMessage(ctx(), msg("m1", "A", "one"))
	_, _ = f.r.Wormholes().Set(ctx(), "C", "active", "0")

	out, _ := f.r.HandleMessage(ctx(), msg("m2", "A", "two"))
	if len(out.Copies) != 1 || out.Copies[0].ChannelID != "B" {
		t.Fatalf("copies: %v", out.Copies)
	}
	if got := texts(f.transport.Messages("C")); len(got) != 1 {
		t.Fatalf("C should only have the first message, got %v", got)
	}
}

func TestIdenticalEditIsNoop(t *testing.T) {
	f := setup(t, "A", "B")
	_, _ = f.r.HandleMessage(ctx(), msg("m1", "A", "hi"))
	f.transport.Reset()

	out, _ := f.r.HandleEdit(ctx(), msg("m1", "A", "hi"))
	if out.State != wormhole.StateUnchanged {
		t.Fatalf("state: got %q", out.State)
	}
	if n := f.transport.Count(memtransport.OpEdit); n != 0 {
		t.Fatalf("expected zero edit calls, got %d", n)
	}

	// After a real edit, repeating it is also a no-op.
	_, _ = f.r.HandleEdit(ctx(), msg("m1", "A", "hello"))
	out, _ = f.r.HandleEdit(ctx(), msg("m1", "A", "hello"))
	if out.State != wormhole.StateUnchanged {
		t.Fatalf("repeated edit: got %q", out.State)
	}
	if n := f.transport.Count(memtransport.OpEdit); n != 1 {
		t.Fatalf("expected one edit call, got %d", n)
	}
}

func TestDeleteRemovesCopies(t *testing.T) {
	f := setup(t, "A", "B", "C")
	_, _ = f.r.HandleMessage(ctx(), msg("m1", "A", "hi"))

	out, err := f.r.HandleDelete(ctx(), "A", "m1")
	if err != nil {
		t.Fatal(err)
	}
	if out.State != wormhole.StateReplayed || out.Applied != 2 {
		t.Fatalf("delete outcome: %+v", out)
	}
	if len(f.transport.Messages("B"))+len(f.transport.Messages("C")) != 0 {
		t.Fatal("copies were not deleted")
	}
	if f.r.Ledger().Len() != 0 {
		t.Fatal("entry must be removed immediately")
	}

	out, _ = f.r.HandleDelete(ctx(), "A", "m1")
	if out.State != wormhole.StateDropped {
		t.Fatalf("second delete: got %q", out.State)
	}
	if out, _ := f.r.HandleEdit(ctx(), msg("m1", "A", "too late")); out.State != wormhole.StateDropped {
		t.Fatalf("edit after delete: got %q", out.State)
	}
}

func TestZeroTimeoutNeverCorrelated(t *testing.T) {
	f := setup(t, "A", "B")
	mustSet(t, f.r, "timeout", "0")

	out, _ := f.r.HandleMessage(ctx(), msg("m1", "A", "hi"))
	if out.State != wormhole.StateDispatched {
		t.Fatalf("state: got %q", out.State)
	}
	if _, err := f.r.Ledger().Lookup("m1"); !errors.Is(err, wormhole.ErrCorrelationNotFound) {
		t.Fatalf("expected ErrCorrelationNotFound, got %v", err)
	}
	if out, _ := f.r.HandleEdit(ctx(), msg("m1", "A", "edit")); out.State != wormhole.StateDropped {
		t.Fatalf("edit: got %q", out.State)
	}
	if out, _ := f.r.HandleDelete(ctx(), "A", "m1"); out.State != wormhole.StateDropped {
		t.Fatalf("delete: got %q", out.State)
	}
}

func TestReplaceMode(t *testing.T) {
	f := setup(t, "A", "B")
	mustSet(t, f.r, "replace", "1")

	out, _ := f.r.HandleMessage(ctx(), msg("m1", "A", "hi"))
	if len(out.Copies) != 2 || out.Copies[0].ChannelID != "A" {
		t.Fatalf("expected copies in A and B, got %v", out.Copies)
	}

	deletes := 0
	for _, op := range f.transport.Ops() {
		if op.Kind == memtransport.OpDelete && op.MessageID == "m1" {
			deletes++
		}
	}
	if deletes != 1 {
		t.Fatalf("expected the original to be deleted once, got %d", deletes)
	}

	// The platform's delete event for the removed original keeps the copies.
	out, _ = f.r.HandleDelete(ctx(), "A", "m1")
	if out.State != wormhole.StateIgnored {
		t.Fatalf("state: got %q", out.State)
	}
	if len(f.transport.Messages("B")) != 1 {
		t.Fatal("copies must survive the original's deletion")
	}
}

func TestReplaceModeWithAttachments(t *testing.T) {
	f := setup(t, "A", "B")
	mustSet(t, f.r, "replace", "1")

	m := msg("m1", "A", "look")
	m.Attachments = []message.Attachment{{Filename: "cat.png", URL: "https://cdn.example.com/cat.png"}}
	out, _ := f.r.HandleMessage(ctx(), m)

	if len(out.Copies) != 1 || out.Copies[0].ChannelID != "B" {
		t.Fatalf("expected only B, got %v", out.Copies)
	}
	if n := f.transport.Count(memtransport.OpDelete); n != 0 {
		t.Fatal("originals with attachments are never deleted")
	}
}

func TestReplaceModeDeletionFailure(t *testing.T) {
	f := setup(t, "A", "B")
	mustSet(t, f.r, "replace", "1")
	f.transport.Fail("A", errors.New("missing permissions"))

	out, err := f.r.HandleMessage(ctx(), msg("m1", "A", "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Copies) != 1 || out.Copies[0].ChannelID != "B" {
		t.Fatalf("expected only B when the original stays, got %v", out.Copies)
	}
}

// listFailingStore fails destination listing while broken is set.
type listFailingStore struct {
	*memory.Store
	broken atomic.Bool
}

func (s *listFailingStore) ListWormholes(ctx context.Context, beamName string) ([]*channel.Wormhole, error) {
	if s.broken.Load() {
		return nil, errors.New("connection reset")
	}
	return s.Store.ListWormholes(ctx, beamName)
}

func TestReplaceModeKeepsOriginalWhenResolveFails(t *testing.T) {
	s := &listFailingStore{Store: memory.New()}
	tr := memtransport.New()
	r, err := wormhole.New(wormhole.WithStore(s), wormhole.WithTransport(tr))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close(ctx()) })

	if _, err := r.Beams().Create(ctx(), "general", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Beams().Set(ctx(), "general", "replace", "1"); err != nil {
		t.Fatal(err)
	}
	for _, ch := range []string{"A", "B"} {
		if _, err := r.Wormholes().Add(ctx(), "general", ch); err != nil {
			t.Fatal(err)
		}
	}

	s.broken.Store(true)
	out, err := r.HandleMessage(ctx(), msg("m1", "A", "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != wormhole.StateRejected || out.Reason != wormhole.ReasonStoreError {
		t.Fatalf("got %q/%q", out.State, out.Reason)
	}
	if n := tr.Count(memtransport.OpDelete); n != 0 {
		t.Fatalf("original deleted although nothing was relayed (%d deletes)", n)
	}
	if n := tr.Count(memtransport.OpSend); n != 0 {
		t.Fatalf("unexpected sends: %d", n)
	}
}

func TestEditFromOtherChannelDropped(t *testing.T) {
	f := setup(t, "A", "B")
	_, _ = f.r.HandleMessage(ctx(), msg("m1", "A", "hi"))
	f.transport.Reset()

	out, err := f.r.HandleEdit(ctx(), msg("m1", "B", "hijacked"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != wormhole.StateDropped {
		t.Fatalf("state: got %q", out.State)
	}
	if n := f.transport.Count(memtransport.OpEdit); n != 0 {
		t.Fatalf("expected no edits, got %d", n)
	}
	if got := texts(f.transport.Messages("B")); len(got) != 1 || got[0] != "hi" {
		t.Fatalf("B: got %v", got)
	}

	// The source channel still edits its copies.
	if out, _ := f.r.HandleEdit(ctx(), msg("m1", "A", "hi there")); out.State != wormhole.StateReplayed {
		t.Fatalf("state: got %q", out.State)
	}
}

func TestTagsAcrossFanOut(t *testing.T) {
	f := setup(t, "A", "B", "C")
	if _, err := f.r.Users().Add(ctx(), 42, "alice", "B"); err != nil {
		t.Fatal(err)
	}

	_, _ = f.r.HandleMessage(ctx(), msg("m1", "A", "ping ((alice))"))

	if got := texts(f.transport.Messages("B")); got[0] != "ping <@!42>" {
		t.Fatalf("B: got %v", got)
	}
	if got := texts(f.transport.Messages("C")); got[0] != "ping **__alice__**" {
		t.Fatalf("C: got %v", got)
	}
}

func TestGuildAnonymityAndTruncation(t *testing.T) {
	f := setup(t, "A", "B")
	mustSet(t, f.r, "anonymity", "guild")
	mustSet(t, f.r, "max_length", "5")

	_, _ = f.r.HandleMessage(ctx(), msg("m1", "A", "hello world"))
	if got := texts(f.transport.Messages("B")); got[0] != "**Guild A**: hello" {
		t.Fatalf("B: got %v", got)
	}

	_, _ = f.r.Wormholes().Set(ctx(), "A", "logo", "<:a:1>")
	_, _ = f.r.HandleMessage(ctx(), msg("m2", "A", "hi"))
	if got := texts(f.transport.Messages("B")); got[1] != "**<:a:1>**: hi" {
		t.Fatalf("B: got %v", got)
	}
}

func TestMessageCounterAndFailures(t *testing.T) {
	f := setup(t, "A", "B", "C")
	f.transport.Fail("C", errors.New("unavailable"))

	out, _ := f.r.HandleMessage(ctx(), msg("m1", "A", "hi"))
	if len(out.Copies) != 1 {
		t.Fatalf("expected partial delivery, got %v", out.Copies)
	}

	w, _ := f.r.Wormholes().Get(ctx(), "A")
	if w.Messages != 1 {
		t.Fatalf("messages: got %d", w.Messages)
	}

	entries, _ := f.r.Failures().List(ctx(), failure.ListOpts{})
	if len(entries) != 1 || entries[0].ChannelID != "C" || entries[0].Beam != "general" {
		t.Fatalf("failure log: %+v", entries)
	}
}

func TestAnnounce(t *testing.T) {
	f := setup(t, "A", "B", "C")
	_, _ = f.r.Wormholes().Set(ctx(), "C", "active", "0")

	n, err := f.r.Announce(ctx(), "general", "maintenance tonight")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("announced to %d channels, want 2", n)
	}
	if got := texts(f.transport.Messages("A")); got[0] != "**WORMHOLE:** maintenance tonight" {
		t.Fatalf("A: got %v", got)
	}
	if f.r.Ledger().Len() != 0 {
		t.Fatal("announcements are not correlated")
	}

	if _, err := f.r.Announce(ctx(), "missing", "x"); !errors.Is(err, wormhole.ErrBeamNotFound) {
		t.Fatalf("expected ErrBeamNotFound, got %v", err)
	}
}

func TestLedgerExpiresOnTimer(t *testing.T) {
	f := setup(t, "A", "B")

	// Timeouts are whole seconds; expire a 1s entry on its real timer.
	mustSet(t, f.r, "timeout", "1")
	_, _ = f.r.HandleMessage(ctx(), msg("m1", "A", "hi"))
	if f.r.Ledger().Len() != 1 {
		t.Fatal("expected a live entry")
	}

	deadline := time.Now().Add(5 * time.Second)
	for f.r.Ledger().Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("entry did not expire")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestEventLoopOrdering(t *testing.T) {
	f := setup(t, "A", "B")

	if err := f.r.Submit(ctx(), wormhole.Event{Kind: wormhole.EventMessage, Message: msg("m0", "A", "x")}); !errors.Is(err, wormhole.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}

	f.r.Start(ctx())
	events := []wormhole.Event{
		{Kind: wormhole.EventMessage, Message: msg("m1", "A", "first")},
		{Kind: wormhole.EventEdit, Message: msg("m1", "A", "first, edited")},
		{Kind: wormhole.EventMessage, Message: msg("m2", "A", "second")},
		{Kind: wormhole.EventDelete, Message: message.Message{ID: "m2", ChannelID: "A"}},
		{Kind: wormhole.EventMessage, Message: msg("m3", "B", "from B")},
	}
	for _, evt := range events {
		if err := f.r.Submit(ctx(), evt); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.r.Submit(ctx(), wormhole.Event{Kind: "bogus", Message: msg("m9", "A", "x")}); !errors.Is(err, wormhole.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx(), 5*time.Second)
	defer cancel()
	if err := f.r.Stop(stopCtx); err != nil {
		t.Fatal(err)
	}

	got := texts(f.transport.Messages("B"))
	if len(got) != 1 || got[0] != "first, edited" {
		t.Fatalf("B: got %v", got)
	}
	if got := texts(f.transport.Messages("A")); len(got) != 1 || !strings.Contains(got[0], "from B") {
		t.Fatalf("A: got %v", got)
	}

	if err := f.r.Submit(ctx(), events[0]); !errors.Is(err, wormhole.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
}
