package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/token-price-engine/internal/asset"
)

// PriceSource is the provenance of a quote.
type PriceSource string

const (
	SourceCachedVenue PriceSource = "cached-venue"
	SourceFreshVenue  PriceSource = "fresh-venue"
	SourceAggregator  PriceSource = "aggregator-api"
)

// PriceQuote is a resolved USD price. A quote with a non-positive price does
// not exist; constructors return false instead.
type PriceQuote struct {
	PriceUSD     decimal.Decimal
	MarketCapUSD *decimal.Decimal
	Source       PriceSource
	// Provider names the venue or aggregator that produced the price.
	Provider   string
	ObservedAt time.Time
}

// NewPriceQuote returns a quote if price is strictly positive.
func NewPriceQuote(price decimal.Decimal, source PriceSource, provider string, at time.Time) (PriceQuote, bool) {
	if !price.IsPositive() {
		return PriceQuote{}, false
	}
	return PriceQuote{
		PriceUSD:   price,
		Source:     source,
		Provider:   provider,
		ObservedAt: at,
	}, true
}

// WithMarketCap attaches a market cap when it is positive.
func (q PriceQuote) WithMarketCap(mc decimal.Decimal) PriceQuote {
	if mc.IsPositive() {
		q.MarketCapUSD = &mc
	}
	return q
}

// Reference sources recorded on quote-currency entries.
const (
	ReferenceHomeVenue      = "home-venue"
	ReferenceSecondaryVenue = "secondary-venue"
	referenceAggregator     = "aggregator:"
)

// AggregatorReference returns the entry source for a named aggregator.
func AggregatorReference(name string) string {
	return referenceAggregator + name
}

// QuoteCurrencyEntry is the cached USD price of a chain reference asset.
type QuoteCurrencyEntry struct {
	// Asset is the reference symbol: ETH, BNB or SOL.
	Asset      string
	PriceUSD   decimal.Decimal
	ObservedAt time.Time
	Source     string
}

// FromAggregator reports whether the entry came from an external API.
func (e QuoteCurrencyEntry) FromAggregator() bool {
	return strings.HasPrefix(e.Source, referenceAggregator)
}

// AggregatorQuote is what an external price API returns for a token.
type AggregatorQuote struct {
	PriceUSD     decimal.Decimal
	MarketCapUSD decimal.Decimal
	Chain        asset.Chain
}
