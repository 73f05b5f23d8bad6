package nano

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLatencyCeiling flags probes slower than this as suspicious.
const DefaultLatencyCeiling = 10 * time.Second

// PriceLevel is the latest quote one exchange published for a symbol.
type PriceLevel struct {
	Exchange  string
	Price     float64
	Volume    float64
	Region    string
	Timestamp uint64
}

// Opportunity is a cross-venue price gap for one symbol.
// ExchangeA was seen before ExchangeB.
type Opportunity struct {
	Pair      string  `json:"pair"`
	ExchangeA string  `json:"exchangeA"`
	ExchangeB string  `json:"exchangeB"`
	PriceA    float64 `json:"priceA"`
	PriceB    float64 `json:"priceB"`
	RegionA   string  `json:"regionA,omitempty"`
	RegionB   string  `json:"regionB,omitempty"`
	Spread    float64 `json:"spread"`
}

// CrossRegion reports whether the legs sit in different regions.
func (o Opportunity) CrossRegion() bool {
	return o.RegionA != o.RegionB
}

// BuyOn names the cheaper venue.
func (o Opportunity) BuyOn() string {
	if o.PriceA <= o.PriceB {
		return o.ExchangeA
	}
	return o.ExchangeB
}

// Prober performs one network round trip to an exchange.
type Prober interface {
	Probe(ctx context.Context, exchange string) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, exchange string) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, exchange string) error { return f(ctx, exchange) }

// ArbitrageOptions tune the tracker.
type ArbitrageOptions struct {
	Clock          Clock
	Prober         Prober
	LatencyCeiling time.Duration
}

type symbolBook struct {
	order  []string
	levels map[string]*PriceLevel
}

// Arbitrage tracks the latest price of every (symbol, exchange).
type Arbitrage struct {
	mu      sync.RWMutex
	symbols map[string]*symbolBook

	clock   Clock
	prober  Prober
	ceiling time.Duration
	logger  zerolog.Logger
}

// NewArbitrage builds a tracker. A nil Prober measures an in-process no-op.
func NewArbitrage(opts ArbitrageOptions, logger zerolog.Logger) *Arbitrage {
	if opts.Clock == nil {
		opts.Clock = NewTimer()
	}
	if opts.Prober == nil {
		opts.Prober = ProberFunc(func(context.Context, string) error { return nil })
	}
	if opts.LatencyCeiling <= 0 {
		opts.LatencyCeiling = DefaultLatencyCeiling
	}
	return &Arbitrage{
		symbols: make(map[string]*symbolBook),
		clock:   opts.Clock,
		prober:  opts.Prober,
		ceiling: opts.LatencyCeiling,
		logger:  logger.With().Str("component", "arbitrage").Logger(),
	}
}

// UpdatePrice upserts the latest quote for (symbol, exchange).
func (a *Arbitrage) UpdatePrice(symbol, exchange string, price, volume float64, region string) error {
	if err := ValidateQuote(price, volume); err != nil {
		return err
	}
	now := a.clock.Now()

	a.mu.Lock()
	defer a.mu.Unlock()
	book, ok := a.symbols[symbol]
	if !ok {
		book = &symbolBook{levels: make(map[string]*PriceLevel)}
		a.symbols[symbol] = book
	}
	level, ok := book.levels[exchange]
	if !ok {
		level = &PriceLevel{Exchange: exchange}
		book.levels[exchange] = level
		book.order = append(book.order, exchange)
	}
	level.Price = price
	level.Volume = volume
	level.Region = region
	level.Timestamp = now
	return nil
}

// Levels returns the known quotes for symbol in first-seen exchange order.
func (a *Arbitrage) Levels(symbol string) []PriceLevel {
	a.mu.RLock()
	defer a.mu.RUnlock()
	book, ok := a.symbols[symbol]
	if !ok {
		return nil
	}
	out := make([]PriceLevel, 0, len(book.order))
	for _, ex := range book.order {
		out = append(out, *book.levels[ex])
	}
	return out
}

// Spread is (max-min)/min for two positive prices.
func Spread(a, b float64) float64 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return (hi - lo) / lo
}

// FindArbitrage returns every exchange pair for symbol whose spread exceeds
// minSpread, widest first. Equal spreads keep first-seen pair order.
func (a *Arbitrage) FindArbitrage(symbol string, minSpread float64) []Opportunity {
	levels := a.Levels(symbol)
	out := make([]Opportunity, 0)
	for i := 0; i < len(levels); i++ {
		for j := i + 1; j < len(levels); j++ {
			la, lb := levels[i], levels[j]
			spread := Spread(la.Price, lb.Price)
			if spread <= minSpread {
				continue
			}
			out = append(out, Opportunity{
				Pair:      symbol,
				ExchangeA: la.Exchange,
				ExchangeB: lb.Exchange,
				PriceA:    la.Price,
				PriceB:    lb.Price,
				RegionA:   la.Region,
				RegionB:   lb.Region,
				Spread:    spread,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Spread > out[j].Spread })
	return out
}

// MeasureLatency times a probe of exchangeA followed by exchangeB. The
// result is never zero. Slow round trips are logged, not rejected.
func (a *Arbitrage) MeasureLatency(ctx context.Context, exchangeA, exchangeB string) (uint64, error) {
	start := a.clock.Now()
	if err := a.prober.Probe(ctx, exchangeA); err != nil {
		return 0, fmt.Errorf("probe %s: %w", exchangeA, err)
	}
	if err := a.prober.Probe(ctx, exchangeB); err != nil {
		return 0, fmt.Errorf("probe %s: %w", exchangeB, err)
	}
	elapsed := Since(a.clock, start)
	if elapsed == 0 {
		elapsed = 1
	}
	if elapsed > uint64(a.ceiling) {
		a.logger.Warn().
			Str("exchange_a", exchangeA).
			Str("exchange_b", exchangeB).
			Uint64("latency_ns", elapsed).
			Dur("ceiling", a.ceiling).
			Msg("latency probe exceeded sanity ceiling")
	}
	return elapsed, nil
}
