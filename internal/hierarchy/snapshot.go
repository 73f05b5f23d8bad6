package hierarchy

import (
	"context"
	"math"
	"strings"
	"time"

	"market-hierarchy/internal/nano"
)

// MarketSnapshot is one exchange's view of one market at a point in time.
type MarketSnapshot struct {
	ExchangeID string             `json:"exchangeId" yaml:"exchangeId"`
	MarketID   string             `json:"marketId" yaml:"marketId"`
	Category   string             `json:"category,omitempty" yaml:"category,omitempty"`
	Price      float64            `json:"price" yaml:"price"`
	Volume     float64            `json:"volume" yaml:"volume"`
	RegionID   string             `json:"regionId,omitempty" yaml:"regionId,omitempty"`
	Timestamp  time.Time          `json:"timestamp" yaml:"timestamp"`
	Sports     *nano.SportsMarket `json:"sports,omitempty" yaml:"sports,omitempty"`
}

// Exchange supplies snapshots to an engine.
type Exchange interface {
	ID() string
	FetchMarkets(ctx context.Context) ([]MarketSnapshot, error)
}

func (s MarketSnapshot) key() string {
	return s.ExchangeID + "\x00" + s.MarketID
}

func (s MarketSnapshot) validate(cat Category) error {
	if strings.TrimSpace(s.ExchangeID) == "" {
		return invalid("exchangeId", "is required", nil)
	}
	if strings.TrimSpace(s.MarketID) == "" {
		return invalid("marketId", "is required", nil)
	}
	if err := nano.ValidateQuote(s.Price, s.Volume); err != nil {
		if !(s.Price > 0) {
			return invalid("price", "must be positive", err)
		}
		return invalid("volume", "must not be negative", err)
	}
	if math.IsInf(s.Price, 0) || math.IsInf(s.Volume, 0) {
		return invalid("price", "must be finite", nil)
	}
	if cat == CategorySports {
		if s.Sports == nil {
			return invalid("sports", "is required for sports markets", nil)
		}
		if err := nano.ValidateOdds(s.MarketID, s.Sports.HomeOdds, s.Sports.AwayOdds); err != nil {
			return invalid("sports.odds", "must be > 1.0", err)
		}
	}
	return nil
}
