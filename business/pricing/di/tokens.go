// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/token-price-engine/business/pricing/app"
	"github.com/fd1az/token-price-engine/business/pricing/infra/coingecko"
	"github.com/fd1az/token-price-engine/business/pricing/infra/uniswap"
	"github.com/fd1az/token-price-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	PriceService = di.NewToken[*app.PriceService]("pricing.PriceService")
	QuoteCache   = di.NewToken[*app.QuoteCurrencyCache]("pricing.QuoteCache")
)

// Private dependency tokens - internal to pricing module
var (
	Venues           = di.NewToken[*app.VenueSet]("pricing:venues")
	PoolStore        = di.NewToken[app.PoolStore]("pricing:poolStore")
	TokenInfo        = di.NewToken[*uniswap.TokenInfo]("pricing:tokenInfo")
	CoinGecko        = di.NewToken[*coingecko.Client]("pricing:coingecko")
	Aggregators      = di.NewToken[[]app.AggregatorSource]("pricing:aggregators")
	ReferenceSources = di.NewToken[[]app.ReferenceSource]("pricing:referenceSources")
	Locator          = di.NewToken[*app.Locator]("pricing:locator")
	Resolver         = di.NewToken[*app.Resolver]("pricing:resolver")
)

// Helper functions for type-safe access
func GetPriceService(c di.ServiceRegistry) *app.PriceService {
	return di.GetToken(c, PriceService)
}

func GetQuoteCache(c di.ServiceRegistry) *app.QuoteCurrencyCache {
	return di.GetToken(c, QuoteCache)
}

func GetVenues(c di.ServiceRegistry) *app.VenueSet {
	return di.GetToken(c, Venues)
}

func GetPoolStore(c di.ServiceRegistry) app.PoolStore {
	return di.GetToken(c, PoolStore)
}

func GetTokenInfo(c di.ServiceRegistry) *uniswap.TokenInfo {
	return di.GetToken(c, TokenInfo)
}

func GetCoinGecko(c di.ServiceRegistry) *coingecko.Client {
	return di.GetToken(c, CoinGecko)
}

func GetAggregators(c di.ServiceRegistry) []app.AggregatorSource {
	return di.GetToken(c, Aggregators)
}

func GetReferenceSources(c di.ServiceRegistry) []app.ReferenceSource {
	return di.GetToken(c, ReferenceSources)
}

func GetLocator(c di.ServiceRegistry) *app.Locator {
	return di.GetToken(c, Locator)
}

func GetResolver(c di.ServiceRegistry) *app.Resolver {
	return di.GetToken(c, Resolver)
}
