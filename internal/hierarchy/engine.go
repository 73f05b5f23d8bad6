package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"market-hierarchy/internal/nano"
)

// Options tune an Engine. Zero values fall back to defaults, except the
// spread and margin thresholds where zero is meaningful.
type Options struct {
	Clock           nano.Clock
	MaxSize         int
	TTL             time.Duration
	Quantizer       Quantizer
	WindowCapacity  int
	VWAPWindow      int
	MinSpread       float64
	MinSportsMargin float64
	Workers         int
	Categories      []Category
	Prober          nano.Prober
	LatencyCeiling  time.Duration
}

const (
	DefaultMaxSize   = 1000
	DefaultTTL       = time.Minute
	DefaultMinSpread = 0.001
)

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = nano.NewTimer()
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.WindowCapacity <= 0 {
		o.WindowCapacity = nano.DefaultWindow
	}
	if o.MinSpread < 0 {
		o.MinSpread = 0
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if len(o.Categories) == 0 {
		o.Categories = AllCategories()
	}
	return o
}

// Engine resolves snapshots into cached property hierarchies. One engine
// owns its cache and metrics; share it by pointer.
type Engine struct {
	exchange Exchange
	opts     Options
	clock    nano.Clock
	logger   zerolog.Logger
	builders map[Category]builder

	arbitrage *nano.Arbitrage
	sports    *nano.SportsBook

	marketsMu sync.Mutex
	markets   map[string]*nano.Market
	lastSeen  map[string]time.Time

	mu         sync.Mutex
	cache      *lru
	counters   counters
	totalNodes uint64
}

// New builds an engine fed by exchange. exchange may be nil when snapshots
// are only pushed through CreateMarketHierarchy.
func New(exchange Exchange, opts Options, logger zerolog.Logger) *Engine {
	opts = opts.withDefaults()

	builders := make(map[Category]builder, len(opts.Categories))
	for _, c := range opts.Categories {
		switch c {
		case CategorySpot:
			builders[c] = spotBuilder{}
		case CategorySports:
			builders[c] = sportsBuilder{}
		}
	}

	return &Engine{
		exchange: exchange,
		opts:     opts,
		clock:    opts.Clock,
		logger:   logger.With().Str("component", "hierarchy").Logger(),
		builders: builders,
		arbitrage: nano.NewArbitrage(nano.ArbitrageOptions{
			Clock:          opts.Clock,
			Prober:         opts.Prober,
			LatencyCeiling: opts.LatencyCeiling,
		}, logger),
		sports:   nano.NewSportsBook(),
		markets:  make(map[string]*nano.Market),
		lastSeen: make(map[string]time.Time),
		cache:    newLRU(opts.MaxSize, uint64(opts.TTL)),
		counters: counters{resetAt: time.Now().UTC()},
	}
}

// Arbitrage exposes the cross-exchange tracker, e.g. for latency probes.
func (e *Engine) Arbitrage() *nano.Arbitrage { return e.arbitrage }

// Sports exposes the sports book.
func (e *Engine) Sports() *nano.SportsBook { return e.sports }

// ExchangeID names the engine's snapshot source, or "" when it has none.
func (e *Engine) ExchangeID() string {
	if e.exchange == nil {
		return ""
	}
	return e.exchange.ID()
}

// CreateMarketHierarchy resolves one snapshot, from cache when its
// fingerprint is live, otherwise by building and caching a new tree.
// A failed call leaves cache and hit/miss counters untouched.
func (e *Engine) CreateMarketHierarchy(s MarketSnapshot) (Resolution, error) {
	start := e.clock.Now()

	cat, b, err := e.admit(s)
	if err != nil {
		e.fail()
		return Resolution{}, err
	}
	fp := e.opts.Quantizer.fingerprint(s, cat)

	e.mu.Lock()
	if h, ok := e.cache.get(fp, start); ok {
		e.counters.hit()
		e.mu.Unlock()
		return h.resolve(latency(e.clock, start), true), nil
	}
	e.mu.Unlock()

	t := newTree(fp, 8)
	opps, err := b.build(e, s, t)
	if err != nil {
		e.fail()
		return Resolution{}, err
	}
	buildNs := latency(e.clock, start)
	h := &Hierarchy{
		RootID:      t.nodes[0].ID,
		MarketID:    s.MarketID,
		ExchangeID:  s.ExchangeID,
		Category:    cat,
		Fingerprint: fp,
		Nodes:       t.nodes,
		Arbitrage:   opps,
		LatencyNs:   buildNs,
	}

	e.mu.Lock()
	evicted := e.cache.put(fp, h, e.clock.Now())
	e.counters.miss(buildNs, len(h.Nodes))
	e.totalNodes += uint64(len(h.Nodes))
	e.mu.Unlock()

	if evicted > 0 {
		e.logger.Debug().Int("evicted", evicted).Str("market", s.MarketID).Msg("cache full, evicted least recently used")
	}
	return h.resolve(buildNs, false), nil
}

// admit validates s and records its timestamp. Timestamps per
// (exchange, market) must not go backwards.
func (e *Engine) admit(s MarketSnapshot) (Category, builder, error) {
	cat, err := ParseCategory(s.Category)
	if err != nil {
		return 0, nil, err
	}
	b, ok := e.builders[cat]
	if !ok {
		return 0, nil, &UnsupportedCategoryError{Category: cat.String()}
	}
	if err := s.validate(cat); err != nil {
		return 0, nil, err
	}

	if s.Timestamp.IsZero() {
		return cat, b, nil
	}
	key := s.key()
	e.marketsMu.Lock()
	defer e.marketsMu.Unlock()
	if last, ok := e.lastSeen[key]; ok && s.Timestamp.Before(last) {
		return 0, nil, invalid("timestamp", fmt.Sprintf("%s precedes last seen %s", s.Timestamp.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano)), nil)
	}
	e.lastSeen[key] = s.Timestamp
	return cat, b, nil
}

func (e *Engine) market(s MarketSnapshot) *nano.Market {
	key := s.key()
	e.marketsMu.Lock()
	defer e.marketsMu.Unlock()
	m, ok := e.markets[key]
	if !ok {
		m = nano.NewMarket(s.MarketID, e.opts.WindowCapacity)
		e.markets[key] = m
	}
	return m
}

func (e *Engine) fail() {
	e.mu.Lock()
	e.counters.failures++
	e.mu.Unlock()
}

// Metrics returns a consistent copy of the counters.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters.snapshot()
}

// ResetMetrics zeroes the counters. The cache is kept.
func (e *Engine) ResetMetrics() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counters = counters{resetAt: time.Now().UTC()}
}

// CacheStats reports the cache occupancy and limits.
func (e *Engine) CacheStats() CacheStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CacheStats{
		Size:    e.cache.len(),
		MaxSize: e.opts.MaxSize,
		TTLMs:   e.opts.TTL.Milliseconds(),
	}
}

// TotalNodes counts every node built by cache misses since start.
func (e *Engine) TotalNodes() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalNodes
}

// PruneExpired drops TTL-expired cache entries and returns how many.
func (e *Engine) PruneExpired() int {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.prune(now)
}

// Purge empties the cache.
func (e *Engine) Purge() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.clear()
}

// Refresh pulls snapshots from the exchange and resolves them as a batch.
func (e *Engine) Refresh(ctx context.Context) (BatchResult, error) {
	if e.exchange == nil {
		return BatchResult{}, errors.New("hierarchy: no exchange configured")
	}
	snapshots, err := e.exchange.FetchMarkets(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("fetch markets from %s: %w", e.exchange.ID(), err)
	}
	return e.ResolveBatch(ctx, snapshots)
}

func latency(c nano.Clock, start uint64) uint64 {
	if d := nano.Since(c, start); d > 0 {
		return d
	}
	return 1
}
