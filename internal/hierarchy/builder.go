package hierarchy

import (
	"market-hierarchy/internal/nano"
)

// builder derives the node tree for one category. It runs outside the
// engine lock and may update the shared trackers.
type builder interface {
	build(e *Engine, s MarketSnapshot, t *tree) ([]Opportunity, error)
}

type spotBuilder struct{}

// build: ROOT → PRICE → VWAP → SPREAD(vs vwap); PRICE → SPREAD(vs each other
// exchange) → ARBITRAGE for opportunities this exchange takes part in.
// Opportunities between other venues hang off PRICE.
func (spotBuilder) build(e *Engine, s MarketSnapshot, t *tree) ([]Opportunity, error) {
	market := e.market(s)
	if err := market.Update(s.Price, s.Volume); err != nil {
		return nil, invalid("price", "rejected by market window", err)
	}
	if err := e.arbitrage.UpdatePrice(s.MarketID, s.ExchangeID, s.Price, s.Volume, s.RegionID); err != nil {
		return nil, invalid("price", "rejected by arbitrage tracker", err)
	}

	root := t.add(-1, KindRoot, s.MarketID, s.Price)
	price := t.add(root, KindPrice, s.ExchangeID, s.Price)
	addVWAP(e, t, market, price, s.Price)

	counter := make(map[string]int)
	for _, level := range e.arbitrage.Levels(s.MarketID) {
		if level.Exchange == s.ExchangeID {
			continue
		}
		counter[level.Exchange] = t.add(price, KindSpread, level.Exchange, nano.Spread(s.Price, level.Price))
	}

	found := e.arbitrage.FindArbitrage(s.MarketID, e.opts.MinSpread)
	opps := make([]Opportunity, 0, len(found))
	for _, opp := range found {
		parent := price
		switch s.ExchangeID {
		case opp.ExchangeA:
			parent = counter[opp.ExchangeB]
		case opp.ExchangeB:
			parent = counter[opp.ExchangeA]
		}
		t.add(parent, KindArbitrage, opp.ExchangeA+"/"+opp.ExchangeB, opp.Spread)
		opps = append(opps, Opportunity{
			Kind:        OpportunitySpread,
			Pair:        opp.Pair,
			ExchangeA:   opp.ExchangeA,
			ExchangeB:   opp.ExchangeB,
			Spread:      opp.Spread,
			CrossRegion: opp.CrossRegion(),
		})
	}
	return opps, nil
}

type sportsBuilder struct{}

// build: ROOT → PRICE → VWAP → SPREAD(vs vwap); PRICE → SPREAD(overround) →
// ARBITRAGE for each opportunity on the fixture.
func (sportsBuilder) build(e *Engine, s MarketSnapshot, t *tree) ([]Opportunity, error) {
	line := *s.Sports
	bookID := s.ExchangeID + ":" + s.MarketID
	if err := e.sports.UpdateMarket(bookID, line); err != nil {
		return nil, invalid("sports.odds", "rejected by sports book", err)
	}
	market := e.market(s)
	if err := market.Update(s.Price, s.Volume); err != nil {
		return nil, invalid("price", "rejected by market window", err)
	}

	root := t.add(-1, KindRoot, s.MarketID, s.Price)
	price := t.add(root, KindPrice, s.ExchangeID, s.Price)
	addVWAP(e, t, market, price, s.Price)
	overround := t.add(price, KindSpread, "overround", line.ImpliedProbability()-1)

	found := e.sports.FindFixtureArbitrage(line.Fixture())
	opps := make([]Opportunity, 0, len(found))
	for _, opp := range found {
		if opp.Margin() <= e.opts.MinSportsMargin {
			continue
		}
		t.add(overround, KindArbitrage, opp.HomeMarketID+"/"+opp.AwayMarketID, opp.Margin())
		opps = append(opps, Opportunity{
			Kind:      OpportunitySports,
			Pair:      opp.Fixture,
			ExchangeA: opp.HomeMarketID,
			ExchangeB: opp.AwayMarketID,
			Spread:    opp.Margin(),
		})
	}
	return opps, nil
}

func addVWAP(e *Engine, t *tree, market *nano.Market, parent int, price float64) {
	vwap := market.VWAP(e.opts.VWAPWindow)
	node := t.add(parent, KindVWAP, "vwap", vwap)
	premium := 0.0
	if vwap > 0 {
		premium = (price - vwap) / vwap
	}
	t.add(node, KindSpread, "vwap", premium)
}
