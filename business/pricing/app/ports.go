// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/asset"
)

// VenueAdapter discovers and decodes the venues of one DEX on one chain.
type VenueAdapter interface {
	Dex() domain.Dex
	Chain() asset.Chain

	// Discover looks up venues pairing token with each quote asset in
	// order and stops at the first quote asset that has any. Candidates
	// carry their quote-side liquidity. No venue is not an error.
	Discover(ctx context.Context, token domain.Token, quotes []*asset.Asset) ([]domain.Candidate, error)

	// Ratio decodes the current state of a venue and returns the price of
	// token in units of the descriptor's quote asset.
	Ratio(ctx context.Context, token domain.Token, pool domain.PoolDescriptor) (*big.Rat, error)
}

// PoolStore persists the selected venue per token.
type PoolStore interface {
	// Get returns nil, nil when tokenID has no descriptor.
	Get(ctx context.Context, tokenID string) (*domain.PoolDescriptor, error)
	// Save replaces the descriptor of tokenID.
	Save(ctx context.Context, tokenID string, pool domain.PoolDescriptor) error
	Ping(ctx context.Context) error
}

// AggregatorSource is an external token price API used as the last stage.
type AggregatorSource interface {
	Name() string
	Supports(chain asset.Chain) bool
	TokenPriceUSD(ctx context.Context, token domain.Token) (domain.AggregatorQuote, error)
}

// ReferenceSource prices a chain reference asset (ETH, BNB, SOL) by symbol.
type ReferenceSource interface {
	Name() string
	ReferencePriceUSD(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// ReferencePricer returns the USD price of a reference asset.
type ReferencePricer interface {
	PriceUSD(ctx context.Context, symbol string) (decimal.Decimal, error)
	Entry(ctx context.Context, symbol string) (domain.QuoteCurrencyEntry, error)
}

// TokenInfoReader reads on-chain token metadata.
type TokenInfoReader interface {
	Decimals(ctx context.Context, chain asset.Chain, identifier string) (uint8, error)
}
