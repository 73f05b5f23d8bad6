package exchange

import (
	"context"

	"market-hierarchy/internal/hierarchy"
)

// Static serves a fixed snapshot list.
type Static struct {
	id        string
	snapshots []hierarchy.MarketSnapshot
}

// NewStatic wraps snapshots. Snapshots without an exchange id inherit id.
func NewStatic(id string, snapshots []hierarchy.MarketSnapshot) *Static {
	return &Static{id: id, snapshots: withExchangeID(id, snapshots)}
}

// ID names the adapter.
func (s *Static) ID() string { return s.id }

// FetchMarkets returns a copy of the configured snapshots.
func (s *Static) FetchMarkets(ctx context.Context) ([]hierarchy.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]hierarchy.MarketSnapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out, nil
}

func withExchangeID(id string, snapshots []hierarchy.MarketSnapshot) []hierarchy.MarketSnapshot {
	for i := range snapshots {
		if snapshots[i].ExchangeID == "" {
			snapshots[i].ExchangeID = id
		}
	}
	return snapshots
}

var _ hierarchy.Exchange = (*Static)(nil)
