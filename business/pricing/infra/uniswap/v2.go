package uniswap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/token-price-engine/business/pricing/app"
	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/logger"
)

var _ app.VenueAdapter = (*V2Adapter)(nil)

// V2Adapter finds and decodes constant-product pairs through a V2 factory.
type V2Adapter struct {
	venue
	factory common.Address
}

// NewV2Adapter creates a V2Adapter. dex is DexUniswapV2 or DexPancakeV2.
func NewV2Adapter(dex domain.Dex, reader EVMReader, factory common.Address, registry *asset.Registry, log logger.LoggerInterface) *V2Adapter {
	return &V2Adapter{
		venue:   newVenue(dex, reader, registry, log),
		factory: factory,
	}
}

// Discover asks the factory for the pair of token with each quote asset and
// returns the first one that exists.
func (a *V2Adapter) Discover(ctx context.Context, token domain.Token, quotes []*asset.Asset) (_ []domain.Candidate, err error) {
	ctx, span := a.startSpan(ctx, "discover", token)
	defer func() { end(span, err) }()

	tokenAddr := common.HexToAddress(token.Identifier)
	for _, quote := range quotes {
		values, err := a.call(ctx, v2ABI, a.factory, "getPair", tokenAddr, quote.Address())
		if err != nil {
			return nil, err
		}
		pair, err := asAddress(values, "getPair")
		if err != nil {
			return nil, err
		}
		if pair == (common.Address{}) {
			continue
		}

		r0, r1, err := a.reserves(ctx, pair)
		if err != nil {
			return nil, err
		}
		quoteReserve := r1
		if !tokenIsToken0(tokenAddr, quote.Address()) {
			quoteReserve = r0
		}

		span.SetAttributes(attribute.String("pair", pair.Hex()), attribute.String("quote", quote.Symbol()))
		return []domain.Candidate{{
			Descriptor:     a.descriptor(token, quote, pair.Hex()),
			QuoteLiquidity: domain.NormalizeRaw(quoteReserve, quote.Decimals()),
		}}, nil
	}
	return nil, nil
}

// Ratio reads the pair reserves and prices token in the quote asset.
func (a *V2Adapter) Ratio(ctx context.Context, token domain.Token, pool domain.PoolDescriptor) (_ *big.Rat, err error) {
	ctx, span := a.startSpan(ctx, "ratio", token)
	defer func() { end(span, err) }()

	decimals, err := tokenDecimals(token)
	if err != nil {
		return nil, err
	}
	quote, err := a.quoteAsset(pool)
	if err != nil {
		return nil, err
	}

	r0, r1, err := a.reserves(ctx, common.HexToAddress(pool.VenueID))
	if err != nil {
		return nil, err
	}

	snap := domain.ReserveSnapshot{ReserveA: r0, ReserveB: r1, DecimalsA: decimals, DecimalsB: quote.Decimals()}
	targetIsA := tokenIsToken0(common.HexToAddress(token.Identifier), quote.Address())
	if !targetIsA {
		snap.DecimalsA, snap.DecimalsB = quote.Decimals(), decimals
	}
	return domain.ConstantProductRatio(snap, targetIsA)
}

func (a *V2Adapter) reserves(ctx context.Context, pair common.Address) (*big.Int, *big.Int, error) {
	values, err := a.call(ctx, v2ABI, pair, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	r0, err := asBigInt(values, 0, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	r1, err := asBigInt(values, 1, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	return r0, r1, nil
}

// tokenIsToken0 reports whether token sorts before other.
func tokenIsToken0(token, other common.Address) bool {
	first, _ := domain.SortAddresses(token, other)
	return first == token
}
