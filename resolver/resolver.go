// Package resolver maps a beam to the channels bound to it, caching the
// membership until an administrative change invalidates it.
package resolver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/channel"
)

// Store is the subset of the record store the resolver reads.
type Store interface {
	GetBeam(ctx context.Context, name string) (*beam.Beam, error)
	ListWormholes(ctx context.Context, beam string) ([]*channel.Wormhole, error)
}

// CacheObserver receives cache hit and miss notifications.
type CacheObserver interface {
	ResolverHit()
	ResolverMiss()
}

// Destination is one channel a relayed message may be delivered to.
type Destination struct {
	ChannelID string
}

// Config configures the resolver cache.
type Config struct {
	// CacheTTL bounds how long a membership set is served without a store
	// read. 0 keeps entries until invalidated.
	CacheTTL time.Duration
}

type cached struct {
	destinations []Destination
	loadedAt     time.Time
}

// Resolver is the cached destination set service.
type Resolver struct {
	store    Store
	cache    map[string]cached
	cacheTTL time.Duration

	// generation counts invalidations per beam, epoch counts InvalidateAll.
	// A load only fills the cache when neither moved while it read the store.
	generation map[string]uint64
	epoch      uint64

	observer CacheObserver
	mu       sync.RWMutex
	logger   *slog.Logger
}

// New creates a Resolver backed by the given store. observer may be nil.
func New(store Store, cfg Config, observer CacheObserver, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:    store,
		cache:      make(map[string]cached),
		cacheTTL:   cfg.CacheTTL,
		generation: make(map[string]uint64),
		observer:   observer,
		logger:     logger,
	}
}

// Resolve returns every channel bound to the beam, in binding order. The
// caller owns the returned slice.
func (r *Resolver) Resolve(ctx context.Context, beamName string) ([]Destination, error) {
	r.mu.RLock()
	entry, ok := r.cache[beamName]
	gen, epoch := r.generation[beamName], r.epoch
	r.mu.RUnlock()
	if ok && !r.expired(entry) {
		if r.observer != nil {
			r.observer.ResolverHit()
		}
		return clone(entry.destinations), nil
	}
	if r.observer != nil {
		r.observer.ResolverMiss()
	}

	if _, err := r.store.GetBeam(ctx, beamName); err != nil {
		return nil, err
	}
	wormholes, err := r.store.ListWormholes(ctx, beamName)
	if err != nil {
		return nil, err
	}

	destinations := make([]Destination, len(wormholes))
	for i, w := range wormholes {
		destinations[i] = Destination{ChannelID: w.ChannelID}
	}

	r.mu.Lock()
	fresh := r.generation[beamName] == gen && r.epoch == epoch
	if fresh {
		r.cache[beamName] = cached{destinations: destinations, loadedAt: time.Now()}
	}
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "resolver: loaded beam", "beam", beamName, "destinations", len(destinations), "cached", fresh)
	return clone(destinations), nil
}

// Invalidate drops the cached set of one beam. Implements beam.Invalidator.
func (r *Resolver) Invalidate(beamName string) {
	r.mu.Lock()
	delete(r.cache, beamName)
	r.generation[beamName]++
	r.mu.Unlock()
}

// InvalidateAll clears the cache, forcing fresh reads from the store.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[string]cached)
	r.epoch++
	r.mu.Unlock()
}

func (r *Resolver) expired(entry cached) bool {
	if r.cacheTTL == 0 {
		return false
	}
	return time.Since(entry.loadedAt) > r.cacheTTL
}

func clone(destinations []Destination) []Destination {
	out := make([]Destination, len(destinations))
	copy(out, destinations)
	return out
}
