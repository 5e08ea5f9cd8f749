// Package oracle resolves symbols to current USD prices. It caches prices for
// a short window, collapses concurrent lookups for the same symbol, and falls
// back to a secondary source when the primary fails.
package oracle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vilenarios/token-swapper/internal/domain"
	"github.com/vilenarios/token-swapper/internal/observability"
	"github.com/vilenarios/token-swapper/internal/storage"
)

// DefaultCacheTTL is how long a fetched price stays valid.
const DefaultCacheTTL = 30 * time.Second

// Source fetches a live USD price for a symbol.
type Source interface {
	// Name identifies the feed in logs and price points.
	Name() string

	// FetchPrice returns the current USD price for symbol.
	FetchPrice(ctx context.Context, symbol string) (*domain.PricePoint, error)
}

// Oracle serves prices with caching and fallback. Safe for concurrent use.
type Oracle struct {
	primary  Source
	fallback Source // optional, tried once when primary fails
	ttl      time.Duration
	pegs     map[string]float64 // fixed prices, e.g. a stablecoin pegged at 1.0
	history  storage.PriceHistoryStore
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
	group singleflight.Group
}

type cacheEntry struct {
	point     domain.PricePoint
	fetchedAt time.Time
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithFallback sets a secondary source tried once when the primary fails.
func WithFallback(src Source) Option {
	return func(o *Oracle) { o.fallback = src }
}

// WithCacheTTL sets how long fetched prices stay valid.
func WithCacheTTL(d time.Duration) Option {
	return func(o *Oracle) { o.ttl = d }
}

// WithPeg fixes a symbol at a constant price, skipping fetches entirely.
func WithPeg(symbol string, price float64) Option {
	return func(o *Oracle) { o.pegs[strings.ToUpper(symbol)] = price }
}

// WithHistory records every successful fetch to a price history sink.
// Sink failures are logged and never fail the lookup.
func WithHistory(store storage.PriceHistoryStore) Option {
	return func(o *Oracle) { o.history = store }
}

// WithMetrics records fetch and cache-hit counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Oracle) { o.metrics = m }
}

// WithClock sets a custom clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) { o.now = now }
}

// New creates an Oracle backed by the given primary source.
func New(primary Source, logger *zap.Logger, opts ...Option) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Oracle{
		primary: primary,
		ttl:     DefaultCacheTTL,
		pegs:    make(map[string]float64),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		cache:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetPrice resolves symbol to its current USD price.
//
// Expiry is checked lazily at read time; there is no background sweep.
// Concurrent callers for the same symbol share one fetch.
func (o *Oracle) GetPrice(ctx context.Context, symbol string) (*domain.PricePoint, error) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if key == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	if price, ok := o.pegs[key]; ok {
		return &domain.PricePoint{Symbol: key, Price: price, AsOf: o.now(), Source: "peg"}, nil
	}

	if p, ok := o.cached(key); ok {
		o.metrics.ObserveCacheHit()
		return p, nil
	}

	v, err, _ := o.group.Do(key, func() (interface{}, error) {
		// A waiter that lost the race may have filled the cache already.
		if p, ok := o.cached(key); ok {
			return p, nil
		}

		p, err := o.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		o.metrics.ObservePriceFetch(p.Source)

		o.mu.Lock()
		o.cache[key] = cacheEntry{point: *p, fetchedAt: o.now()}
		o.mu.Unlock()

		o.record(ctx, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PricePoint), nil
}

// cached returns the cache entry for key if it has not expired.
func (o *Oracle) cached(key string) (*domain.PricePoint, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	entry, ok := o.cache[key]
	if !ok {
		return nil, false
	}
	if o.now().Sub(entry.fetchedAt) >= o.ttl {
		return nil, false
	}
	p := entry.point
	return &p, true
}

// fetch tries the primary source, then the fallback exactly once.
func (o *Oracle) fetch(ctx context.Context, symbol string) (*domain.PricePoint, error) {
	p, primaryErr := o.primary.FetchPrice(ctx, symbol)
	if primaryErr == nil {
		return p, nil
	}

	if o.fallback == nil {
		return nil, fmt.Errorf("fetch price for %s from %s: %w", symbol, o.primary.Name(), primaryErr)
	}

	o.logger.Warn("primary price source failed, trying fallback",
		zap.String("symbol", symbol),
		zap.String("primary", o.primary.Name()),
		zap.String("fallback", o.fallback.Name()),
		zap.Error(primaryErr))

	p, fallbackErr := o.fallback.FetchPrice(ctx, symbol)
	if fallbackErr != nil {
		return nil, fmt.Errorf("fetch price for %s: primary %s: %v; fallback %s: %w",
			symbol, o.primary.Name(), primaryErr, o.fallback.Name(), fallbackErr)
	}
	return p, nil
}

func (o *Oracle) record(ctx context.Context, p *domain.PricePoint) {
	if o.history == nil {
		return
	}
	if err := o.history.Insert(ctx, p); err != nil {
		o.logger.Warn("record price observation failed",
			zap.String("symbol", p.Symbol), zap.Error(err))
	}
}
