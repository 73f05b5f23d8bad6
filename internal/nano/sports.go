package nano

import (
	"sort"
	"sync"
)

// Market statuses understood by SportsBook. Only open markets are priced.
const (
	StatusOpen      = "open"
	StatusSuspended = "suspended"
	StatusClosed    = "closed"
)

// SportsMarket is one book's two-way line on a fixture. Odds are decimal.
type SportsMarket struct {
	Sport      string  `json:"sport" yaml:"sport"`
	HomeTeamID string  `json:"homeTeamId" yaml:"homeTeamId"`
	AwayTeamID string  `json:"awayTeamId" yaml:"awayTeamId"`
	HomeOdds   float64 `json:"homeOdds" yaml:"homeOdds"`
	AwayOdds   float64 `json:"awayOdds" yaml:"awayOdds"`
	Volume     float64 `json:"volume" yaml:"volume"`
	Status     string  `json:"status" yaml:"status"`
}

// ImpliedProbability is 1/home + 1/away.
func (m SportsMarket) ImpliedProbability() float64 {
	return 1/m.HomeOdds + 1/m.AwayOdds
}

// Fixture keys markets that price the same event.
func (m SportsMarket) Fixture() string {
	return m.Sport + ":" + m.HomeTeamID + "-" + m.AwayTeamID
}

// SportsOpportunity is a set of legs whose implied probabilities sum below 1.
type SportsOpportunity struct {
	Fixture            string  `json:"fixture"`
	Sport              string  `json:"sport"`
	HomeMarketID       string  `json:"homeMarketId"`
	AwayMarketID       string  `json:"awayMarketId"`
	HomeOdds           float64 `json:"homeOdds"`
	AwayOdds           float64 `json:"awayOdds"`
	ImpliedProbability float64 `json:"impliedProbability"`
}

// Margin is the guaranteed return per unit staked across both legs.
func (o SportsOpportunity) Margin() float64 {
	return 1 - o.ImpliedProbability
}

// SelfArbitrage reports whether both legs come from a single market.
func (o SportsOpportunity) SelfArbitrage() bool {
	return o.HomeMarketID == o.AwayMarketID
}

// SportsBook tracks odds per market id.
type SportsBook struct {
	mu      sync.RWMutex
	markets map[string]SportsMarket
	order   []string
}

// NewSportsBook returns an empty book.
func NewSportsBook() *SportsBook {
	return &SportsBook{markets: make(map[string]SportsMarket)}
}

// UpdateMarket upserts a market. An empty status is treated as open.
func (b *SportsBook) UpdateMarket(id string, m SportsMarket) error {
	if err := ValidateOdds(id, m.HomeOdds, m.AwayOdds); err != nil {
		return err
	}
	if m.Status == "" {
		m.Status = StatusOpen
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.markets[id]; !ok {
		b.order = append(b.order, id)
	}
	b.markets[id] = m
	return nil
}

// Market returns the stored market for id.
func (b *SportsBook) Market(id string) (SportsMarket, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.markets[id]
	return m, ok
}

// FindArbitrage lists every open market that is arbitrage on its own, then,
// per fixture, the best-home/best-away combination across books when those
// legs come from different markets. Results are ordered by implied
// probability ascending; ties keep first-seen order.
func (b *SportsBook) FindArbitrage() []SportsOpportunity {
	return b.find("")
}

// FindFixtureArbitrage restricts FindArbitrage to a single fixture.
func (b *SportsBook) FindFixtureArbitrage(fixture string) []SportsOpportunity {
	return b.find(fixture)
}

type bestLegs struct {
	sport    string
	homeID   string
	homeOdds float64
	awayID   string
	awayOdds float64
}

func (b *SportsBook) find(only string) []SportsOpportunity {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]SportsOpportunity, 0)
	best := make(map[string]*bestLegs)
	fixtures := make([]string, 0)

	for _, id := range b.order {
		m := b.markets[id]
		if m.Status != StatusOpen {
			continue
		}
		fixture := m.Fixture()
		if only != "" && fixture != only {
			continue
		}

		if implied := m.ImpliedProbability(); implied < 1 {
			out = append(out, SportsOpportunity{
				Fixture:            fixture,
				Sport:              m.Sport,
				HomeMarketID:       id,
				AwayMarketID:       id,
				HomeOdds:           m.HomeOdds,
				AwayOdds:           m.AwayOdds,
				ImpliedProbability: implied,
			})
		}

		legs, ok := best[fixture]
		if !ok {
			best[fixture] = &bestLegs{sport: m.Sport, homeID: id, homeOdds: m.HomeOdds, awayID: id, awayOdds: m.AwayOdds}
			fixtures = append(fixtures, fixture)
			continue
		}
		if m.HomeOdds > legs.homeOdds {
			legs.homeID, legs.homeOdds = id, m.HomeOdds
		}
		if m.AwayOdds > legs.awayOdds {
			legs.awayID, legs.awayOdds = id, m.AwayOdds
		}
	}

	for _, fixture := range fixtures {
		legs := best[fixture]
		if legs.homeID == legs.awayID {
			continue
		}
		implied := 1/legs.homeOdds + 1/legs.awayOdds
		if implied >= 1 {
			continue
		}
		out = append(out, SportsOpportunity{
			Fixture:            fixture,
			Sport:              legs.sport,
			HomeMarketID:       legs.homeID,
			AwayMarketID:       legs.awayID,
			HomeOdds:           legs.homeOdds,
			AwayOdds:           legs.awayOdds,
			ImpliedProbability: implied,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ImpliedProbability < out[j].ImpliedProbability
	})
	return out
}
