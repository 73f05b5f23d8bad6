package exchange

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"market-hierarchy/internal/hierarchy"
	"market-hierarchy/internal/nano"
)

// SimulatedOptions drive the random-walk generator.
type SimulatedOptions struct {
	ID         string
	Seed       int64
	Exchanges  []string
	Symbols    []string
	Regions    []string
	Fixtures   int
	Volatility float64
	// Now stamps snapshots; defaults to time.Now.
	Now func() time.Time
}

var basePrices = map[string]float64{
	"BTC": 50000,
	"ETH": 3000,
	"SOL": 150,
}

var sports = []string{"soccer", "basketball", "tennis"}

type fixture struct {
	sport string
	home  string
	away  string
	odds  [2]float64
}

// Simulated emits a seeded Gaussian random walk per (exchange, symbol) plus
// sports fixtures whose odds jitter per book.
type Simulated struct {
	opts SimulatedOptions

	mu       sync.Mutex
	rng      *rand.Rand
	prices   map[string]float64
	fixtures []fixture
	last     time.Time
}

// NewSimulated seeds the generator. Empty lists fall back to one exchange and BTC.
func NewSimulated(opts SimulatedOptions) *Simulated {
	if opts.ID == "" {
		opts.ID = "sim"
	}
	if len(opts.Exchanges) == 0 {
		opts.Exchanges = []string{"exchange_0"}
	}
	if len(opts.Symbols) == 0 {
		opts.Symbols = []string{"BTC"}
	}
	if opts.Volatility <= 0 {
		opts.Volatility = 0.002
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Simulated{
		opts:   opts,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		prices: make(map[string]float64),
	}
	for i, ex := range opts.Exchanges {
		for _, sym := range opts.Symbols {
			base, ok := basePrices[sym]
			if !ok {
				base = 100
			}
			// Books start slightly apart so spreads exist from the first tick.
			s.prices[ex+"/"+sym] = base * (1 + 0.0005*float64(i))
		}
	}
	for i := 0; i < opts.Fixtures; i++ {
		home := 1.6 + s.rng.Float64()*1.2
		away := 1.6 + s.rng.Float64()*1.2
		s.fixtures = append(s.fixtures, fixture{
			sport: sports[i%len(sports)],
			home:  fmt.Sprintf("team_%d", 2*i),
			away:  fmt.Sprintf("team_%d", 2*i+1),
			odds:  [2]float64{home, away},
		})
	}
	return s
}

// ID names the adapter.
func (s *Simulated) ID() string { return s.opts.ID }

// FetchMarkets advances every walk by one step.
func (s *Simulated) FetchMarkets(ctx context.Context) ([]hierarchy.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now().UTC()
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now

	out := make([]hierarchy.MarketSnapshot, 0, len(s.opts.Exchanges)*(len(s.opts.Symbols)+len(s.fixtures)))
	for i, ex := range s.opts.Exchanges {
		region := s.region(i)
		for _, sym := range s.opts.Symbols {
			k := ex + "/" + sym
			price := s.prices[k] * math.Exp(s.rng.NormFloat64()*s.opts.Volatility)
			s.prices[k] = price
			out = append(out, hierarchy.MarketSnapshot{
				ExchangeID: ex,
				MarketID:   sym,
				Category:   hierarchy.CategorySpot.String(),
				Price:      price,
				Volume:     1 + s.rng.Float64()*99,
				RegionID:   region,
				Timestamp:  now,
			})
		}
		for j, fx := range s.fixtures {
			home := jitter(s.rng, fx.odds[0])
			away := jitter(s.rng, fx.odds[1])
			volume := 100 + s.rng.Float64()*900
			out = append(out, hierarchy.MarketSnapshot{
				ExchangeID: ex,
				MarketID:   fmt.Sprintf("fixture_%d", j),
				Category:   hierarchy.CategorySports.String(),
				Price:      home,
				Volume:     volume,
				RegionID:   region,
				Timestamp:  now,
				Sports: &nano.SportsMarket{
					Sport:      fx.sport,
					HomeTeamID: fx.home,
					AwayTeamID: fx.away,
					HomeOdds:   home,
					AwayOdds:   away,
					Volume:     volume,
					Status:     nano.StatusOpen,
				},
			})
		}
	}
	return out, nil
}

func (s *Simulated) region(i int) string {
	if len(s.opts.Regions) == 0 {
		return ""
	}
	return s.opts.Regions[i%len(s.opts.Regions)]
}

// jitter moves odds by up to ±8% and keeps them above evens.
func jitter(rng *rand.Rand, odds float64) float64 {
	v := odds * (1 + (rng.Float64()-0.5)*0.16)
	if v <= 1.01 {
		v = 1.01
	}
	return math.Round(v*100) / 100
}

var _ hierarchy.Exchange = (*Simulated)(nil)
