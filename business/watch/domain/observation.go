package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Observation is the outcome of pricing one target once.
type Observation struct {
	Target       Target
	PriceUSD     decimal.Decimal
	MarketCapUSD *decimal.Decimal
	// Source is cached-venue, fresh-venue or aggregator-api.
	Source     string
	Provider   string
	ObservedAt time.Time
	Latency    time.Duration
	Err        error
}

// OK reports whether the observation carries a price.
func (o Observation) OK() bool {
	return o.Err == nil && o.PriceUSD.IsPositive()
}

// CycleSummary describes one pass over every target.
type CycleSummary struct {
	Number   uint64
	Started  time.Time
	Duration time.Duration
	Priced   int
	Failed   int
}
