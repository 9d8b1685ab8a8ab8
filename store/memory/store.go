// Package memory provides an in-memory Store implementation, used by tests
// and by single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/id"
	wormholestore "github.com/xraph/wormhole/store"
	"github.com/xraph/wormhole/user"
)

// compile-time interface check.
var _ wormholestore.Store = (*Store)(nil)

type boundWormhole struct {
	seq uint64
	w   channel.Wormhole
}

// Store is an in-memory implementation of store.Store. Records are copied on
// the way in and out so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	beams     map[string]beam.Beam      // keyed by name
	wormholes map[string]*boundWormhole // keyed by channel ID
	users     map[int64]user.User       // keyed by account ID
	failures  map[string]failure.Entry  // keyed by ID string
	seq       uint64

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		beams:     make(map[string]beam.Beam),
		wormholes: make(map[string]*boundWormhole),
		users:     make(map[int64]user.User),
		failures:  make(map[string]failure.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is still open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return wormhole.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// beam.Store
// ──────────────────────────────────────────────────

// CreateBeam persists a new beam.
func (s *Store) CreateBeam(_ context.Context, b *beam.Beam) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.beams[b.Name]; ok {
		return wormhole.ErrBeamExists
	}
	s.beams[b.Name] = *b
	return nil
}

// GetBeam returns a beam by name.
func (s *Store) GetBeam(_ context.Context, name string) (*beam.Beam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.beams[name]
	if !ok {
		return nil, wormhole.ErrBeamNotFound
	}
	return &b, nil
}

// UpdateBeam replaces a stored beam.
func (s *Store) UpdateBeam(_ context.Context, b *beam.Beam) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.beams[b.Name]; !ok {
		return wormhole.ErrBeamNotFound
	}
	s.beams[b.Name] = *b
	return nil
}

// ListBeams returns all beams ordered by name.
func (s *Store) ListBeams(_ context.Context) ([]*beam.Beam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*beam.Beam, 0, len(s.beams))
	for _, b := range s.beams {
		b := b
		result = append(result, &b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ──────────────────────────────────────────────────
// channel.Store
// ──────────────────────────────────────────────────

// CreateWormhole persists a new binding.
func (s *Store) CreateWormhole(_ context.Context, w *channel.Wormhole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wormholes[w.ChannelID]; ok {
		return wormhole.ErrWormholeExists
	}
	s.seq++
	s.wormholes[w.ChannelID] = &boundWormhole{seq: s.seq, w: *w}
	return nil
}

// GetWormhole returns the binding of a channel.
func (s *Store) GetWormhole(_ context.Context, channelID string) (*channel.Wormhole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bw, ok := s.wormholes[channelID]
	if !ok {
		return nil, wormhole.ErrWormholeNotFound
	}
	w := bw.w
	return &w, nil
}

// UpdateWormhole replaces a stored binding, keeping its creation order.
func (s *Store) UpdateWormhole(_ context.Context, w *channel.Wormhole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bw, ok := s.wormholes[w.ChannelID]
	if !ok {
		return wormhole.ErrWormholeNotFound
	}
	bw.w = *w
	return nil
}

// DeleteWormhole removes a binding.
func (s *Store) DeleteWormhole(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wormholes[channelID]; !ok {
		return wormhole.ErrWormholeNotFound
	}
	delete(s.wormholes, channelID)
	return nil
}

// ListWormholes returns the bindings of a beam in creation order.
func (s *Store) ListWormholes(_ context.Context, beamName string) ([]*channel.Wormhole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bound := make([]*boundWormhole, 0, len(s.wormholes))
	for _, bw := range s.wormholes {
		if beamName != "" && bw.w.Beam != beamName {
			continue
		}
		bound = append(bound, bw)
	}
	sort.Slice(bound, func(i, j int) bool { return bound[i].seq < bound[j].seq })

	result := make([]*channel.Wormhole, len(bound))
	for i, bw := range bound {
		w := bw.w
		result[i] = &w
	}
	return result, nil
}

// IncrementMessages adds one to the relayed message counter of a channel.
func (s *Store) IncrementMessages(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bw, ok := s.wormholes[channelID]
	if !ok {
		return wormhole.ErrWormholeNotFound
	}
	bw.w.Messages++
	return nil
}

// ──────────────────────────────────────────────────
// user.Store
// ──────────────────────────────────────────────────

// CreateUser persists a new user.
func (s *Store) CreateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.AccountID]; ok {
		return wormhole.ErrUserExists
	}
	if s.nicknameTaken(u.Nickname, u.AccountID) {
		return wormhole.ErrNicknameTaken
	}
	s.users[u.AccountID] = *u
	return nil
}

// GetUser returns a user by account ID.
func (s *Store) GetUser(_ context.Context, accountID int64) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[accountID]
	if !ok {
		return nil, wormhole.ErrUserNotFound
	}
	return &u, nil
}

// GetUserByNickname returns a user by nickname.
func (s *Store) GetUserByNickname(_ context.Context, nickname string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Nickname == nickname {
			return &u, nil
		}
	}
	return nil, wormhole.ErrUserNotFound
}

// UpdateUser replaces a stored user.
func (s *Store) UpdateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.AccountID]; !ok {
		return wormhole.ErrUserNotFound
	}
	if s.nicknameTaken(u.Nickname, u.AccountID) {
		return wormhole.ErrNicknameTaken
	}
	s.users[u.AccountID] = *u
	return nil
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(_ context.Context, accountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[accountID]; !ok {
		return wormhole.ErrUserNotFound
	}
	delete(s.users, accountID)
	return nil
}

// ListUsers returns all users ordered by account ID.
func (s *Store) ListUsers(_ context.Context) ([]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*user.User, 0, len(s.users))
	for _, u := range s.users {
		u := u
		result = append(result, &u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountID < result[j].AccountID })
	return result, nil
}

func (s *Store) nicknameTaken(nickname string, owner int64) bool {
	for _, u := range s.users {
		if u.Nickname == nickname && u.AccountID != owner {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────────
// failure.Store
// ──────────────────────────────────────────────────

// RecordFailure appends an entry to the failure log.
func (s *Store) RecordFailure(_ context.Context, entry *failure.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[entry.ID.String()] = *entry
	return nil
}

// GetFailure returns a failure entry by ID.
func (s *Store) GetFailure(_ context.Context, failureID id.ID) (*failure.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.failures[failureID.String()]
	if !ok {
		return nil, wormhole.ErrFailureNotFound
	}
	return &e, nil
}

// ListFailures returns entries newest first, optionally filtered.
func (s *Store) ListFailures(_ context.Context, opts failure.ListOpts) ([]*failure.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*failure.Entry
	for _, e := range s.failures {
		e := e
		if !opts.Match(&e) {
			continue
		}
		result = append(result, &e)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FailedAt.Equal(result[j].FailedAt) {
			return result[j].ID.Before(result[i].ID)
		}
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountFailures returns the total number of failure entries.
func (s *Store) CountFailures(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.failures)), nil
}

// PurgeFailures deletes entries that failed before the threshold.
func (s *Store) PurgeFailures(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for key, e := range s.failures {
		if e.FailedAt.Before(before) {
			delete(s.failures, key)
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func applyPagination[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
