package wormhole

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/dispatch"
	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/ledger"
	"github.com/xraph/wormhole/observability"
	"github.com/xraph/wormhole/resolver"
	"github.com/xraph/wormhole/store"
	"github.com/xraph/wormhole/transform"
	"github.com/xraph/wormhole/user"
)

// Relay is the root message relay engine.
type Relay struct {
	config    Config
	store     store.Store
	transport dispatch.Transport
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	now       func() time.Time
	logger    *slog.Logger

	resolver    *resolver.Resolver
	transformer *transform.Transformer
	dispatcher  *dispatch.Dispatcher
	ledger      *ledger.Ledger
	beamSvc     *beam.Service
	channelSvc  *channel.Service
	userSvc     *user.Service
	failureSvc  *failure.Service

	lanes lanes
}

type lanes struct {
	mu      sync.RWMutex // guards running and lane channel lifetime
	mapMu   sync.Mutex
	running bool
	byID    map[string]chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Relay instance.
type Option func(*Relay) error

// New creates a new Relay with the given options.
func New(opts ...Option) (*Relay, error) {
	r := &Relay{
		config: DefaultConfig(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.store == nil {
		return nil, ErrNoStore
	}
	if r.transport == nil {
		return nil, ErrNoTransport
	}
	r.wireServices()
	return r, nil
}

// WithStore sets the record store.
func WithStore(s store.Store) Option {
	return func(r *Relay) error {
		r.store = s
		return nil
	}
}

// WithTransport sets the destination channel transport.
func WithTransport(t dispatch.Transport) Option {
	return func(r *Relay) error {
		r.transport = t
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) error {
		r.logger = logger
		return nil
	}
}

// WithCommandPrefix rejects messages starting with prefix.
func WithCommandPrefix(prefix string) Option {
	return func(r *Relay) error {
		r.config.CommandPrefix = prefix
		return nil
	}
}

// WithLaneBuffer sets the number of queued events per source channel.
func WithLaneBuffer(n int) Option {
	return func(r *Relay) error {
		r.config.LaneBuffer = n
		return nil
	}
}

// WithDestinationRateLimit bounds operations per second per destination.
func WithDestinationRateLimit(perSecond int) Option {
	return func(r *Relay) error {
		r.config.DestinationRateLimit = perSecond
		return nil
	}
}

// WithMaxLength sets the body limit used for beams without their own.
func WithMaxLength(n int) Option {
	return func(r *Relay) error {
		r.config.MaxLength = n
		return nil
	}
}

// WithMentionFormat sets the mention and emphasis formats for tags. The
// mention verb receives the account ID, the emphasis verb the nickname.
func WithMentionFormat(mention, emphasis string) Option {
	return func(r *Relay) error {
		r.config.MentionFormat = mention
		r.config.EmphasisFormat = emphasis
		return nil
	}
}

// WithAnnouncePrefix sets the prefix of administrative broadcasts.
func WithAnnouncePrefix(prefix string) Option {
	return func(r *Relay) error {
		r.config.AnnouncePrefix = prefix
		return nil
	}
}

// WithResolverCacheTTL bounds how long destination sets are cached.
func WithResolverCacheTTL(d time.Duration) Option {
	return func(r *Relay) error {
		r.config.ResolverCacheTTL = d
		return nil
	}
}

// WithOwnerID sets the account allowed to alter moderators.
func WithOwnerID(accountID int64) Option {
	return func(r *Relay) error {
		r.config.OwnerID = accountID
		return nil
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Relay) error {
		r.metrics = m
		return nil
	}
}

// WithTracer sets the tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(r *Relay) error {
		r.tracer = t
		return nil
	}
}

// WithClock sets the time source of the correlation ledger.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) error {
		r.now = now
		return nil
	}
}
