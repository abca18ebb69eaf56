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

var _ app.VenueAdapter = (*V3Adapter)(nil)

// V3Adapter finds and decodes concentrated-liquidity pools through a V3
// factory, one pool per fee tier.
type V3Adapter struct {
	venue
	factory  common.Address
	feeTiers []uint32
}

// NewV3Adapter creates a V3Adapter. dex is DexUniswapV3 or DexPancakeV3.
func NewV3Adapter(dex domain.Dex, reader EVMReader, factory common.Address, feeTiers []uint32, registry *asset.Registry, log logger.LoggerInterface) *V3Adapter {
	return &V3Adapter{
		venue:    newVenue(dex, reader, registry, log),
		factory:  factory,
		feeTiers: feeTiers,
	}
}

// Discover asks the factory for a pool per fee tier against each quote asset
// and returns every pool of the first quote asset that has any. Liquidity
// is the quote balance held by the pool.
func (a *V3Adapter) Discover(ctx context.Context, token domain.Token, quotes []*asset.Asset) (_ []domain.Candidate, err error) {
	ctx, span := a.startSpan(ctx, "discover", token)
	defer func() { end(span, err) }()

	tokenAddr := common.HexToAddress(token.Identifier)
	for _, quote := range quotes {
		var found []domain.Candidate
		for _, fee := range a.feeTiers {
			values, err := a.call(ctx, v3ABI, a.factory, "getPool", tokenAddr, quote.Address(), big.NewInt(int64(fee)))
			if err != nil {
				return nil, err
			}
			pool, err := asAddress(values, "getPool")
			if err != nil {
				return nil, err
			}
			if pool == (common.Address{}) {
				continue
			}

			balance, err := a.balanceOf(ctx, quote.Address(), pool)
			if err != nil {
				return nil, err
			}

			d := a.descriptor(token, quote, pool.Hex())
			d.FeeTier = fee
			found = append(found, domain.Candidate{
				Descriptor:     d,
				QuoteLiquidity: domain.NormalizeRaw(balance, quote.Decimals()),
			})
		}
		if len(found) > 0 {
			span.SetAttributes(attribute.Int("pools", len(found)), attribute.String("quote", quote.Symbol()))
			return found, nil
		}
	}
	return nil, nil
}

// Ratio reads slot0 and prices token in the quote asset.
func (a *V3Adapter) Ratio(ctx context.Context, token domain.Token, pool domain.PoolDescriptor) (_ *big.Rat, err error) {
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

	out, err := a.raw(ctx, v3ABI, common.HexToAddress(pool.VenueID), "slot0")
	if err != nil {
		return nil, err
	}
	sqrtPrice, tick, err := decodeSlot0(out)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("tick", int(tick)))

	return concentratedRatio(sqrtPrice, tick, common.HexToAddress(token.Identifier), decimals, quote.Address(), quote.Decimals())
}

// concentratedRatio orders the pair canonically and prices token in quote.
func concentratedRatio(sqrtPrice *big.Int, tick int32, token common.Address, tokenDecimals uint8, quote common.Address, quoteDecimals uint8) (*big.Rat, error) {
	snap := domain.ConcentratedLiquiditySnapshot{
		SqrtPriceX96: sqrtPrice,
		Tick:         tick,
		Decimals0:    tokenDecimals,
		Decimals1:    quoteDecimals,
	}
	isToken0 := tokenIsToken0(token, quote)
	if !isToken0 {
		snap.Decimals0, snap.Decimals1 = quoteDecimals, tokenDecimals
	}
	return domain.ConcentratedRatio(snap, isToken0)
}
