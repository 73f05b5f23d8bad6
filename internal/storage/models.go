package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricsSample is one persisted snapshot of engine metrics per bucket.
type MetricsSample struct {
	Bucket          time.Time
	ExchangeID      string
	Resolutions     int64
	CacheHits       int64
	CacheMisses     int64
	Failures        int64
	Traversals      int64
	TotalNodes      int64
	CacheSize       int
	AvgResolutionNs decimal.Decimal
	CacheHitRatio   decimal.Decimal
	Opportunities   int
	Status          string
	Error           *string
	CreatedAt       time.Time
}

// OpportunityRecord audits an alerted arbitrage opportunity.
type OpportunityRecord struct {
	ID           int64
	Bucket       time.Time
	Kind         string
	Pair         string
	ExchangeA    string
	ExchangeB    string
	SpreadPct    decimal.Decimal
	ThresholdPct decimal.Decimal
	CrossRegion  bool
	Channels     []string
	CreatedAt    time.Time
}
