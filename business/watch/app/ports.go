// Package app contains application services and port definitions for the watch context.
package app

import (
	"context"

	chainDomain "github.com/fd1az/token-price-engine/business/blockchain/domain"
	pricingApp "github.com/fd1az/token-price-engine/business/pricing/app"
	pricingDomain "github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/business/watch/domain"
)

// Pricer resolves USD prices.
type Pricer interface {
	GetPriceUSD(ctx context.Context, req pricingApp.PriceRequest) (pricingApp.PriceResult, error)
}

// ReferenceReader exposes the cached reference asset prices.
type ReferenceReader interface {
	Snapshot(ctx context.Context) []pricingDomain.QuoteCurrencyEntry
}

// ChainProber reports the health of every enabled chain.
type ChainProber interface {
	Status(ctx context.Context) []chainDomain.ChainStatus
}

// Reporter defines the interface for reporting watch results.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// Report sends one observation to be displayed/logged.
	Report(obs domain.Observation)

	// ReportCycle is called after every target of a cycle was observed.
	ReportCycle(summary domain.CycleSummary, refs []pricingDomain.QuoteCurrencyEntry)

	// UpdateChainStatus updates a chain status display.
	UpdateChainStatus(status chainDomain.ChainStatus)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
