package pricecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Aurum/internal/domain/quote"
	"github.com/NordCoder/Aurum/internal/obs"
	"github.com/NordCoder/Aurum/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultTTL = time.Hour

// Source tells how a quote was obtained.
type Source string

const (
	SourceCache    Source = "cache"
	SourceUpstream Source = "upstream"
	SourceStale    Source = "stale"
)

type Result struct {
	Quote  quote.Quote
	Source Source
}

// Stale reports that the refresh failed and the last stored record was served.
func (r Result) Stale() bool { return r.Source == SourceStale }

var (
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricecache_lookups_total",
		Help: "Quote lookups by outcome.",
	}, []string{"outcome"})
	upstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricecache_upstream_duration_seconds",
		Help:    "Latency of upstream price fetches.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
)

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSingleFlight collapses concurrent refreshes of one instrument into a single upstream call.
func WithSingleFlight(enabled bool) Option {
	return func(c *Cache) {
		if enabled {
			c.group = &singleflight.Group{}
		} else {
			c.group = nil
		}
	}
}

func WithEvents(e quote.Events) Option {
	return func(c *Cache) { c.events = e }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.log = obs.Component(l, "pricecache") }
}

// Cache is a read-through quote cache that refreshes a record once it is older than the TTL.
type Cache struct {
	repo     quote.Repo
	fetchers map[string]quote.Fetcher
	ttl      time.Duration
	now      func() time.Time
	events   quote.Events
	group    *singleflight.Group
	log      *zap.Logger
}

// New builds a cache. fetchers maps every supported instrument to its upstream.
func New(repo quote.Repo, fetchers map[string]quote.Fetcher, opts ...Option) *Cache {
	c := &Cache{
		repo:     repo,
		fetchers: fetchers,
		ttl:      DefaultTTL,
		now:      func() time.Time { return time.Now().UTC() },
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) Supports(instrumentID string) bool {
	_, ok := c.fetchers[instrumentID]
	return ok
}

func (c *Cache) GetQuote(ctx context.Context, instrumentID string) (quote.Quote, error) {
	res, err := c.Lookup(ctx, instrumentID)
	return res.Quote, err
}

func (c *Cache) Lookup(ctx context.Context, instrumentID string) (Result, error) {
	fetcher, ok := c.fetchers[instrumentID]
	if !ok {
		return Result{}, quote.ErrUnknownInstrument
	}

	ctx, span := obs.Tracer("pricecache").Start(ctx, "pricecache.lookup")
	defer span.End()
	span.SetAttributes(attribute.String("instrument.id", instrumentID))

	prev, err := c.repo.Get(ctx, instrumentID)
	switch {
	case errors.Is(err, quote.ErrNotFound):
		prev = nil
	case err != nil:
		lookups.WithLabelValues("error").Inc()
		obs.SpanError(span, err)
		return Result{}, fmt.Errorf("load quote: %w", err)
	}

	if prev != nil && !c.stale(prev) {
		lookups.WithLabelValues(string(SourceCache)).Inc()
		span.SetAttributes(attribute.String("quote.source", string(SourceCache)))
		return Result{Quote: *prev, Source: SourceCache}, nil
	}

	var res Result
	if c.group == nil {
		res, err = c.refresh(ctx, instrumentID, fetcher, prev)
	} else {
		// The shared call must outlive the caller that happened to start it.
		shared := context.WithoutCancel(ctx)
		v, gerr, _ := c.group.Do(instrumentID, func() (any, error) {
			return c.refresh(shared, instrumentID, fetcher, prev)
		})
		res, err = v.(Result), gerr
	}
	if err != nil {
		outcome := "error"
		if errors.Is(err, quote.ErrUpstreamUnavailable) {
			outcome = "unavailable"
		}
		lookups.WithLabelValues(outcome).Inc()
		obs.SpanError(span, err)
		return Result{}, err
	}
	lookups.WithLabelValues(string(res.Source)).Inc()
	span.SetAttributes(attribute.String("quote.source", string(res.Source)))
	return res, nil
}

func (c *Cache) stale(q *quote.Quote) bool {
	return c.now().Sub(q.UpdatedAt) > c.ttl
}

func (c *Cache) refresh(ctx context.Context, instrumentID string, fetcher quote.Fetcher, prev *quote.Quote) (Result, error) {
	log := obs.WithTrace(ctx, c.log).With(zap.String("instrument", instrumentID))

	start := time.Now()
	price, err := fetcher.Fetch(ctx, instrumentID)
	if err != nil {
		upstreamLatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if prev != nil {
			log.Warn("upstream failed, serving stale quote",
				zap.Time("updated_at", prev.UpdatedAt), zap.Error(err))
			return Result{Quote: *prev, Source: SourceStale}, nil
		}
		log.Error("upstream failed, no stored quote", zap.Error(err))
		return Result{}, quote.ErrUpstreamUnavailable
	}
	upstreamLatency.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	next := quote.Next(prev, instrumentID, price, c.now())
	if err := c.repo.Upsert(ctx, &next); err != nil {
		return Result{}, fmt.Errorf("store quote: %w", err)
	}
	log.Info("quote refreshed",
		zap.String("current", next.CurrentPrice.String()),
		zap.String("previous", next.PreviousPrice.String()))

	c.publish(ctx, next, log)
	return Result{Quote: next, Source: SourceUpstream}, nil
}

func (c *Cache) publish(ctx context.Context, q quote.Quote, log *zap.Logger) {
	if c.events == nil {
		return
	}
	err := retry.Do(ctx, func() error {
		return c.events.PublishPriceUpdated(ctx, q)
	}, retry.EventsPolicy(log))
	if err != nil {
		log.Warn("price event dropped", zap.Error(err))
	}
}
