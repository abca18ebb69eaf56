package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/logger"
)

// PriceRequest identifies the token to price.
type PriceRequest struct {
	// TokenID keys the persisted venue; empty means "chain:identifier".
	TokenID    string
	Chain      asset.Chain
	Identifier string
	// Decimals is negative when unknown.
	Decimals int
}

// PriceResult is the answer to a price request.
type PriceResult struct {
	PriceUSD     decimal.Decimal
	MarketCapUSD *decimal.Decimal
	Source       domain.PriceSource
	Provider     string
	Stage        string
	ObservedAt   time.Time
}

// PriceService exposes USD pricing and venue priming.
type PriceService struct {
	resolver *Resolver
	locator  *Locator
	store    PoolStore
	tokens   TokenInfoReader
	refs     *QuoteCurrencyCache
	logger   logger.LoggerInterface
}

// NewPriceService creates a PriceService. tokens may be nil.
func NewPriceService(resolver *Resolver, locator *Locator, store PoolStore, tokens TokenInfoReader, refs *QuoteCurrencyCache, log logger.LoggerInterface) *PriceService {
	return &PriceService{
		resolver: resolver,
		locator:  locator,
		store:    store,
		tokens:   tokens,
		refs:     refs,
		logger:   log,
	}
}

// GetPriceUSD resolves the USD price of a token. The only errors are
// INVALID_INPUT and ALL_SOURCES_FAILED; callers skip the cycle on the latter.
func (s *PriceService) GetPriceUSD(ctx context.Context, req PriceRequest) (PriceResult, error) {
	token, err := s.token(ctx, req.Chain, req.Identifier, req.Decimals)
	if err != nil {
		return PriceResult{}, err
	}
	tokenID := req.TokenID
	if tokenID == "" {
		tokenID = token.ID()
	}

	cached, err := s.store.Get(ctx, tokenID)
	if err != nil {
		s.logger.Warn(ctx, "pool store read failed, resolving without cached venue",
			"token_id", tokenID, "error", err)
		cached = nil
	}

	res, err := s.resolver.Resolve(ctx, token, cached)
	if err != nil {
		return PriceResult{}, err
	}

	if res.Discovered != nil {
		if err := s.store.Save(ctx, tokenID, *res.Discovered); err != nil {
			s.logger.Warn(ctx, "failed to persist discovered venue",
				"token_id", tokenID, "venue", res.Discovered.String(), "error", err)
		} else {
			s.logger.Info(ctx, "venue persisted",
				"token_id", tokenID, "venue", res.Discovered.String(), "replaced", cached != nil)
		}
	}

	return PriceResult{
		PriceUSD:     res.Quote.PriceUSD,
		MarketCapUSD: res.Quote.MarketCapUSD,
		Source:       res.Quote.Source,
		Provider:     res.Quote.Provider,
		Stage:        res.Stage,
		ObservedAt:   res.Quote.ObservedAt,
	}, nil
}

// FindAndPersistBestPool locates the best venue and stores it under tokenID.
// It returns nil, nil when the token has no venue.
func (s *PriceService) FindAndPersistBestPool(ctx context.Context, tokenID string, chain asset.Chain, identifier string, decimals int) (*domain.PoolDescriptor, error) {
	token, err := s.token(ctx, chain, identifier, decimals)
	if err != nil {
		return nil, err
	}
	if tokenID == "" {
		tokenID = token.ID()
	}

	pool, err := s.locator.Locate(ctx, token)
	if err != nil {
		if domain.IsPoolNotFound(err) {
			s.logger.Info(ctx, "no venue found", "token_id", tokenID, "token", token.ID())
			return nil, nil
		}
		return nil, err
	}

	if err := s.store.Save(ctx, tokenID, pool); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "venue primed", "token_id", tokenID, "venue", pool.String())
	return &pool, nil
}

// ReferencePrices returns the stored quote-currency entries.
func (s *PriceService) ReferencePrices(ctx context.Context) []domain.QuoteCurrencyEntry {
	if s.refs == nil {
		return nil
	}
	return s.refs.Snapshot(ctx)
}

// token validates the request and fills unknown EVM decimals.
func (s *PriceService) token(ctx context.Context, chain asset.Chain, identifier string, decimals int) (domain.Token, error) {
	token, err := domain.NewToken(chain, identifier, decimals)
	if err != nil {
		return domain.Token{}, err
	}

	if !token.DecimalsKnown() && chain.IsEVM() && s.tokens != nil {
		d, err := s.tokens.Decimals(ctx, chain, token.Identifier)
		if err != nil {
			// Venue stages fail without decimals; aggregators still work.
			s.logger.Debug(ctx, "token decimals unavailable", "token", token.ID(), "error", err)
		} else {
			token.Decimals = int(d)
		}
	}
	return token, nil
}
