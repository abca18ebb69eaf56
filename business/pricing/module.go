// Package pricing implements the pricing bounded context: venue discovery,
// protocol decoding and USD price resolution with fallbacks.
package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	blockchainApp "github.com/fd1az/token-price-engine/business/blockchain/app"
	blockchainDI "github.com/fd1az/token-price-engine/business/blockchain/di"
	chain "github.com/fd1az/token-price-engine/business/blockchain/domain"
	"github.com/fd1az/token-price-engine/business/pricing/app"
	pricingDI "github.com/fd1az/token-price-engine/business/pricing/di"
	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/business/pricing/infra/binance"
	"github.com/fd1az/token-price-engine/business/pricing/infra/coingecko"
	"github.com/fd1az/token-price-engine/business/pricing/infra/dexscreener"
	"github.com/fd1az/token-price-engine/business/pricing/infra/jupiter"
	"github.com/fd1az/token-price-engine/business/pricing/infra/memory"
	"github.com/fd1az/token-price-engine/business/pricing/infra/postgres"
	"github.com/fd1az/token-price-engine/business/pricing/infra/raydium"
	"github.com/fd1az/token-price-engine/business/pricing/infra/uniswap"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/clock"
	"github.com/fd1az/token-price-engine/internal/config"
	"github.com/fd1az/token-price-engine/internal/di"
	"github.com/fd1az/token-price-engine/internal/logger"
	"github.com/fd1az/token-price-engine/internal/monolith"
)

const (
	storeConnectTimeout = 10 * time.Second
	storeProbeTimeout   = 3 * time.Second
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Venues (private - adapters of every enabled chain in preference order)
	di.RegisterToken(c, pricingDI.Venues, func(sr di.ServiceRegistry) *app.VenueSet {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)
		chains := blockchainDI.GetChainService(sr)

		adapters, err := buildAdapters(cfg, chains, registry, log)
		if err != nil {
			panic("failed to build venue adapters: " + err.Error())
		}

		venues, err := app.NewVenueSet(registry,
			app.StablesBySymbol(cfg.Quotes.Ethereum, cfg.Quotes.BSC, cfg.Quotes.Solana),
			adapters...)
		if err != nil {
			panic("failed to create venue set: " + err.Error())
		}
		return venues
	})

	// Register PoolStore (private - memory or postgres)
	di.RegisterToken(c, pricingDI.PoolStore, func(sr di.ServiceRegistry) app.PoolStore {
		cfg := sr.Get("config").(*config.Config)

		switch cfg.Store.Driver {
		case "postgres":
			ctx, cancel := context.WithTimeout(context.Background(), storeConnectTimeout)
			defer cancel()

			pool, err := postgres.NewPool(ctx, cfg.Store.DSN)
			if err != nil {
				panic("failed to connect pool store: " + err.Error())
			}
			store := postgres.NewStore(pool)
			if err := store.EnsureSchema(ctx); err != nil {
				pool.Close()
				panic("failed to prepare pool store: " + err.Error())
			}
			return store
		default:
			return memory.NewStore(clock.Real())
		}
	})

	// Register TokenInfo (private - ERC20 decimals on the EVM chains)
	di.RegisterToken(c, pricingDI.TokenInfo, func(sr di.ServiceRegistry) *uniswap.TokenInfo {
		log := sr.Get("logger").(logger.LoggerInterface)
		chains := blockchainDI.GetChainService(sr)

		var readers []uniswap.EVMReader
		for _, ch := range []asset.Chain{asset.ChainEthereum, asset.ChainBSC} {
			if r, err := chains.EVM(ch); err == nil {
				readers = append(readers, r)
			}
		}
		return uniswap.NewTokenInfo(readers, log)
	})

	// Register CoinGecko (private - shared by the aggregator and reference lists)
	di.RegisterToken(c, pricingDI.CoinGecko, func(sr di.ServiceRegistry) *coingecko.Client {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		client, err := coingecko.NewClient(coingecko.Config{
			BaseURL:           cfg.Aggregators.CoinGeckoURL,
			Timeout:           cfg.Aggregators.Timeout,
			APIKey:            cfg.Aggregators.CoinGeckoAPIKey,
			RequestsPerMinute: cfg.Aggregators.CoinGeckoRPM,
		}, log)
		if err != nil {
			panic("failed to create coingecko client: " + err.Error())
		}
		return client
	})

	// Register Aggregators (private - Stage 3 sources in configured order)
	di.RegisterToken(c, pricingDI.Aggregators, func(sr di.ServiceRegistry) []app.AggregatorSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var sources []app.AggregatorSource
		for _, name := range cfg.Aggregators.Order {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case dexscreener.Name:
				client, err := dexscreener.NewClient(dexscreener.Config{
					BaseURL: cfg.Aggregators.DexScreenerURL,
					Timeout: cfg.Aggregators.Timeout,
				}, log)
				if err != nil {
					panic("failed to create dexscreener client: " + err.Error())
				}
				sources = append(sources, client)
			case jupiter.Name:
				client, err := jupiter.NewClient(jupiter.Config{
					BaseURL: cfg.Aggregators.JupiterURL,
					Timeout: cfg.Aggregators.Timeout,
				}, log)
				if err != nil {
					panic("failed to create jupiter client: " + err.Error())
				}
				sources = append(sources, client)
			case coingecko.Name:
				sources = append(sources, pricingDI.GetCoinGecko(sr))
			default:
				panic("unknown aggregator: " + name)
			}
		}
		return sources
	})

	// Register ReferenceSources (private - last resort of the quote cache)
	di.RegisterToken(c, pricingDI.ReferenceSources, func(sr di.ServiceRegistry) []app.ReferenceSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		binanceCfg := binance.DefaultConfig()
		if cfg.Aggregators.BinanceURL != "" {
			binanceCfg.BaseURL = cfg.Aggregators.BinanceURL
		}
		if cfg.Aggregators.Timeout > 0 {
			binanceCfg.Timeout = cfg.Aggregators.Timeout
		}
		client, err := binance.NewClient(binanceCfg, log)
		if err != nil {
			panic("failed to create binance client: " + err.Error())
		}

		return []app.ReferenceSource{client, pricingDI.GetCoinGecko(sr)}
	})

	// Register QuoteCache (public - reference asset prices)
	di.RegisterToken(c, pricingDI.QuoteCache, func(sr di.ServiceRegistry) *app.QuoteCurrencyCache {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		plans, err := app.DefaultReferencePlans(cfg.Reference.ETHHomePool)
		if err != nil {
			panic("failed to build reference plans: " + err.Error())
		}

		q, err := app.NewQuoteCurrencyCache(
			pricingDI.GetVenues(sr),
			pricingDI.GetReferenceSources(sr),
			plans,
			log,
			app.WithQuoteTTL(cfg.Reference.TTL),
		)
		if err != nil {
			panic("failed to create quote cache: " + err.Error())
		}
		return q
	})

	// Register Locator (private)
	di.RegisterToken(c, pricingDI.Locator, func(sr di.ServiceRegistry) *app.Locator {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewLocator(pricingDI.GetVenues(sr), pricingDI.GetQuoteCache(sr), clock.Real(), log)
	})

	// Register Resolver (private)
	di.RegisterToken(c, pricingDI.Resolver, func(sr di.ServiceRegistry) *app.Resolver {
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		r, err := app.NewResolver(
			pricingDI.GetVenues(sr),
			pricingDI.GetLocator(sr),
			pricingDI.GetQuoteCache(sr),
			pricingDI.GetAggregators(sr),
			registry,
			clock.Real(),
			log,
		)
		if err != nil {
			panic("failed to create resolver: " + err.Error())
		}
		return r
	})

	// Register PriceService (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.PriceService, func(sr di.ServiceRegistry) *app.PriceService {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewPriceService(
			pricingDI.GetResolver(sr),
			pricingDI.GetLocator(sr),
			pricingDI.GetPoolStore(sr),
			pricingDI.GetTokenInfo(sr),
			pricingDI.GetQuoteCache(sr),
			log,
		)
	})

	return nil
}

// Startup registers the store health check and releases caches on close.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	venues := pricingDI.GetVenues(sr)
	store := pricingDI.GetPoolStore(sr)
	quotes := pricingDI.GetQuoteCache(sr)
	tokens := pricingDI.GetTokenInfo(sr)

	mono.OnClose(func() error {
		quotes.Close()
		tokens.Close()
		if closer, ok := store.(interface{ Close() }); ok {
			closer.Close()
		}
		return nil
	})

	if hs := mono.Health(); hs != nil {
		hs.RegisterCheck("store", func(ctx context.Context) (bool, string) {
			probeCtx, cancel := context.WithTimeout(ctx, storeProbeTimeout)
			defer cancel()

			if err := store.Ping(probeCtx); err != nil {
				return false, err.Error()
			}
			return true, mono.Config().Store.Driver
		})
	}

	log.Info(ctx, "pricing module started",
		"chains", venues.Chains(),
		"aggregators", len(pricingDI.GetAggregators(sr)),
		"store", mono.Config().Store.Driver,
	)
	return nil
}

// buildAdapters returns the venue adapters of every enabled chain, most
// preferred first.
func buildAdapters(cfg *config.Config, chains *blockchainApp.ChainService, registry *asset.Registry, log logger.LoggerInterface) ([]app.VenueAdapter, error) {
	var adapters []app.VenueAdapter

	if eth, err := chains.EVM(asset.ChainEthereum); err == nil {
		adapters = append(adapters,
			uniswap.NewV4Adapter(eth, cfg.Dex.UniswapV4StateViewAddress(), uniswap.DefaultV4Tiers, registry, log),
			uniswap.NewV3Adapter(domain.DexUniswapV3, eth, cfg.Dex.UniswapV3FactoryAddress(), feeTiers(cfg.Dex.UniswapV3FeeTiers), registry, log),
			uniswap.NewV2Adapter(domain.DexUniswapV2, eth, cfg.Dex.UniswapV2FactoryAddress(), registry, log),
		)
	}

	if bsc, err := chains.EVM(asset.ChainBSC); err == nil {
		adapters = append(adapters,
			uniswap.NewV3Adapter(domain.DexPancakeV3, bsc, cfg.Dex.PancakeV3FactoryAddress(), feeTiers(cfg.Dex.PancakeV3FeeTiers), registry, log),
			uniswap.NewV2Adapter(domain.DexPancakeV2, bsc, cfg.Dex.PancakeV2FactoryAddress(), registry, log),
		)
	}

	if sol, err := chains.Solana(); err == nil {
		cpmmProgram, err := chain.ParsePublicKey(cfg.Dex.RaydiumCPMMProgram)
		if err != nil {
			return nil, fmt.Errorf("raydium cpmm program: %w", err)
		}
		ammProgram, err := chain.ParsePublicKey(cfg.Dex.RaydiumAMMv4Program)
		if err != nil {
			return nil, fmt.Errorf("raydium amm v4 program: %w", err)
		}
		configs := make([]chain.PublicKey, 0, len(cfg.Dex.RaydiumCPMMConfigs))
		for _, s := range cfg.Dex.RaydiumCPMMConfigs {
			pk, err := chain.ParsePublicKey(s)
			if err != nil {
				return nil, fmt.Errorf("raydium cpmm config %s: %w", s, err)
			}
			configs = append(configs, pk)
		}

		adapters = append(adapters,
			raydium.NewCPMMAdapter(sol, cpmmProgram, configs, registry, log),
			raydium.NewAMMv4Adapter(sol, ammProgram, registry, log),
		)
	}

	return adapters, nil
}

func feeTiers(tiers []int) []uint32 {
	out := make([]uint32, 0, len(tiers))
	for _, t := range tiers {
		if t > 0 {
			out = append(out, uint32(t))
		}
	}
	return out
}
