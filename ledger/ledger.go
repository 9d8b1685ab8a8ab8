// Package ledger keeps the short-lived correlation between a source message
// and the copies relayed from it, so edits and deletions can be replayed.
//
// Every entry expires after its retention window. Expiry runs on its own
// timer and never blocks relay processing; removal happens exactly once,
// whether it is triggered by the timer, an explicit Remove, or a Lookup that
// observes a passed deadline.
package ledger

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/wormhole/message"
)

// ErrNotFound is returned when no live entry exists for a source message.
var ErrNotFound = errors.New("wormhole: correlation entry not found")

// Entry maps one source message to its relayed copies.
type Entry struct {
	SourceID      string         `json:"source_id"`
	SourceChannel string         `json:"source_channel"`
	Beam          string         `json:"beam"`
	Content       string         `json:"content"`
	Copies        []message.Copy `json:"copies"`

	// Replaced is set when the original was deleted and reposted.
	Replaced bool `json:"replaced,omitempty"`

	CreatedAt time.Time     `json:"created_at"`
	Retention time.Duration `json:"retention"`
}

// ExpiresAt returns the instant the entry stops being retrievable.
func (e Entry) ExpiresAt() time.Time { return e.CreatedAt.Add(e.Retention) }

func (e Entry) clone() Entry {
	e.Copies = append([]message.Copy(nil), e.Copies...)
	return e
}

type item struct {
	entry Entry
	timer *time.Timer
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the time source used for creation stamps and deadline checks.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithExpireHook registers fn to run after an entry expires. It is not
// called for entries removed with Remove.
func WithExpireHook(fn func(Entry)) Option {
	return func(l *Ledger) { l.onExpire = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// Ledger is an in-memory, process-lifetime correlation table.
type Ledger struct {
	mu       sync.Mutex
	entries  map[string]*item
	now      func() time.Time
	onExpire func(Entry)
	closed   bool
	logger   *slog.Logger
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		entries: make(map[string]*item),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record stores e for retention and reports whether it was stored. A
// retention of zero or less stores nothing. Recording an ID that is still
// live replaces the earlier entry.
func (l *Ledger) Record(e Entry, retention time.Duration) bool {
	if retention <= 0 || e.SourceID == "" {
		return false
	}

	e = e.clone()
	e.Retention = retention
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}

	if prev, ok := l.entries[e.SourceID]; ok {
		prev.timer.Stop()
	}
	it := &item{entry: e}
	it.timer = time.AfterFunc(retention, func() { l.expire(e.SourceID, it) })
	l.entries[e.SourceID] = it

	l.logger.Debug("ledger: recorded", "source_id", e.SourceID, "copies", len(e.Copies), "retention", retention)
	return true
}

// Lookup returns a copy of the live entry for sourceID.
func (l *Ledger) Lookup(sourceID string) (Entry, error) {
	l.mu.Lock()
	it, ok := l.entries[sourceID]
	if !ok {
		l.mu.Unlock()
		return Entry{}, ErrNotFound
	}
	if !l.now().Before(it.entry.ExpiresAt()) {
		it.timer.Stop()
		delete(l.entries, sourceID)
		l.mu.Unlock()
		l.expired(it.entry)
		return Entry{}, ErrNotFound
	}
	e := it.entry.clone()
	l.mu.Unlock()
	return e, nil
}

// Remove deletes the entry for sourceID and cancels its expiry. It returns
// the removed entry and false if nothing was live.
func (l *Ledger) Remove(sourceID string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	it, ok := l.entries[sourceID]
	if !ok {
		return Entry{}, false
	}
	it.timer.Stop()
	delete(l.entries, sourceID)
	return it.entry, true
}

// SetContent replaces the stored body of a live entry.
func (l *Ledger) SetContent(sourceID, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	it, ok := l.entries[sourceID]
	if !ok || !l.now().Before(it.entry.ExpiresAt()) {
		return ErrNotFound
	}
	it.entry.Content = content
	return nil
}

// Len returns the number of stored entries, including any whose deadline
// has passed but whose removal has not run yet.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Close cancels every pending expiry and empties the ledger. Later records
// are ignored.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, it := range l.entries {
		it.timer.Stop()
		delete(l.entries, key)
	}
	l.closed = true
}

// expire runs on the entry's timer. The identity check makes a timer that
// lost a race with Record, Remove, or Lookup a no-op.
func (l *Ledger) expire(sourceID string, it *item) {
	l.mu.Lock()
	if l.entries[sourceID] != it {
		l.mu.Unlock()
		return
	}
	delete(l.entries, sourceID)
	l.mu.Unlock()
	l.expired(it.entry)
}

func (l *Ledger) expired(e Entry) {
	l.logger.Debug("ledger: expired", "source_id", e.SourceID)
	if l.onExpire != nil {
		l.onExpire(e)
	}
}
