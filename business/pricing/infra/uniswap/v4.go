package uniswap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/token-price-engine/business/pricing/app"
	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/logger"
)

var _ app.VenueAdapter = (*V4Adapter)(nil)

// V4Adapter reads V4 pools through the StateView lens. Pool ids are
// computed locally, so discovery needs no registry lookup. The native
// coin is currency zero; wrapped native quotes map onto it.
type V4Adapter struct {
	venue
	stateView common.Address
	tiers     []V4Tier
}

// NewV4Adapter creates a V4Adapter for hookless pools.
func NewV4Adapter(reader EVMReader, stateView common.Address, tiers []V4Tier, registry *asset.Registry, log logger.LoggerInterface) *V4Adapter {
	if len(tiers) == 0 {
		tiers = DefaultV4Tiers
	}
	return &V4Adapter{
		venue:     newVenue(domain.DexUniswapV4, reader, registry, log),
		stateView: stateView,
		tiers:     tiers,
	}
}

// Discover probes the pool id of each tier against each quote asset. A pool
// that was never initialized reads as zero liquidity and is skipped.
func (a *V4Adapter) Discover(ctx context.Context, token domain.Token, quotes []*asset.Asset) (_ []domain.Candidate, err error) {
	ctx, span := a.startSpan(ctx, "discover", token)
	defer func() { end(span, err) }()

	tokenAddr := common.HexToAddress(token.Identifier)
	for _, quote := range quotes {
		currency := v4Currency(quote)

		var found []domain.Candidate
		for _, tier := range a.tiers {
			id, err := domain.V4PoolID(tokenAddr, currency, tier.Fee, tier.TickSpacing, common.Address{})
			if err != nil {
				return nil, err
			}

			liquidity, err := a.liquidity(ctx, id)
			if err != nil {
				return nil, err
			}
			if liquidity.Sign() == 0 {
				continue
			}
			sqrtPrice, _, err := a.slot0(ctx, id)
			if err != nil {
				return nil, err
			}

			r0, r1 := domain.VirtualReserves(liquidity, sqrtPrice)
			quoteRaw := r1
			if !tokenIsToken0(tokenAddr, currency) {
				quoteRaw = r0
			}

			d := a.descriptor(token, quote, id.Hex())
			d.FeeTier = tier.Fee
			d.TickSpacing = tier.TickSpacing
			found = append(found, domain.Candidate{
				Descriptor:     d,
				QuoteLiquidity: normalizeRat(quoteRaw, quote.Decimals()),
			})
		}
		if len(found) > 0 {
			span.SetAttributes(attribute.Int("pools", len(found)), attribute.String("quote", quote.Symbol()))
			return found, nil
		}
	}
	return nil, nil
}

// Ratio reads the pool's slot0 from StateView and prices token in the quote asset.
func (a *V4Adapter) Ratio(ctx context.Context, token domain.Token, pool domain.PoolDescriptor) (_ *big.Rat, err error) {
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

	id := common.HexToHash(pool.VenueID)
	sqrtPrice, tick, err := a.slot0(ctx, id)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("tick", int(tick)))

	return concentratedRatio(sqrtPrice, tick, common.HexToAddress(token.Identifier), decimals, v4Currency(quote), quote.Decimals())
}

func (a *V4Adapter) slot0(ctx context.Context, id common.Hash) (*big.Int, int32, error) {
	values, err := a.call(ctx, stateViewABI, a.stateView, "getSlot0", [32]byte(id))
	if err != nil {
		return nil, 0, err
	}
	sqrtPrice, err := asBigInt(values, 0, "getSlot0")
	if err != nil {
		return nil, 0, err
	}
	tick, err := asBigInt(values, 1, "getSlot0")
	if err != nil {
		return nil, 0, err
	}
	return sqrtPrice, int32(tick.Int64()), nil
}

func (a *V4Adapter) liquidity(ctx context.Context, id common.Hash) (*big.Int, error) {
	values, err := a.call(ctx, stateViewABI, a.stateView, "getLiquidity", [32]byte(id))
	if err != nil {
		return nil, err
	}
	return asBigInt(values, 0, "getLiquidity")
}

// v4Currency maps a quote asset onto its V4 currency.
func v4Currency(quote *asset.Asset) common.Address {
	if quote.IsNative() {
		return domain.NativeCurrency
	}
	return quote.Address()
}

func normalizeRat(raw *big.Rat, decimals uint8) decimal.Decimal {
	r := new(big.Rat).Quo(raw, new(big.Rat).SetInt(asset.Pow10(int(decimals))))
	return domain.RatToDecimal(r)
}
