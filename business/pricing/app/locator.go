package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/clock"
	"github.com/fd1az/token-price-engine/internal/logger"
)

const tracerName = "github.com/fd1az/token-price-engine/business/pricing/app"

var two = decimal.NewFromInt(2)

// Locator finds the most liquid venue for a token across the chain's protocols.
type Locator struct {
	venues *VenueSet
	refs   ReferencePricer
	clock  clock.Clock
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewLocator creates a Locator. refs prices native-quoted candidates; with
// a nil refs only LocateStable is usable.
func NewLocator(venues *VenueSet, refs ReferencePricer, clk clock.Clock, log logger.LoggerInterface) *Locator {
	if clk == nil {
		clk = clock.Real()
	}
	return &Locator{
		venues: venues,
		refs:   refs,
		clock:  clk,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
}

// Locate returns the venue with the greatest USD liquidity for token.
func (l *Locator) Locate(ctx context.Context, token domain.Token) (domain.PoolDescriptor, error) {
	return l.locate(ctx, token, false)
}

// LocateStable only considers stable-quoted venues and never consults the
// reference prices, so it is safe to use while resolving them.
func (l *Locator) LocateStable(ctx context.Context, token domain.Token) (domain.PoolDescriptor, error) {
	return l.locate(ctx, token, true)
}

func (l *Locator) locate(ctx context.Context, token domain.Token, stableOnly bool) (domain.PoolDescriptor, error) {
	ctx, span := l.tracer.Start(ctx, "pricing.locate",
		trace.WithAttributes(
			attribute.String("chain", string(token.Chain)),
			attribute.String("token", token.Identifier),
			attribute.Bool("stable_only", stableOnly),
		),
	)
	defer span.End()

	adapters := l.venues.Adapters(token.Chain)
	quotes := l.venues.Quotes(token, stableOnly)
	if len(adapters) == 0 || len(quotes) == 0 {
		err := domain.ErrPoolNotFound("no venues configured for " + token.ID())
		span.SetStatus(codes.Error, err.Error())
		return domain.PoolDescriptor{}, err
	}

	var candidates []domain.Candidate
	var errs []error

	for pref, adapter := range adapters {
		found, err := adapter.Discover(ctx, token, quotes)
		if err != nil {
			l.logger.Debug(ctx, "venue discovery failed",
				"dex", adapter.Dex(), "token", token.ID(), "error", err)
			errs = append(errs, err)
			continue
		}

		for _, c := range found {
			c.Preference = pref
			usd, err := l.liquidityUSD(ctx, c)
			if err != nil {
				l.logger.Debug(ctx, "candidate liquidity unavailable",
					"venue", c.Descriptor.String(), "error", err)
				continue
			}
			c.LiquidityUSD = usd
			candidates = append(candidates, c)
		}
	}

	span.SetAttributes(attribute.Int("candidates", len(candidates)))

	best, ok := domain.SelectBest(candidates)
	if !ok {
		var err error
		if len(errs) == len(adapters) {
			// Every protocol failed; absence is unknown.
			err = errors.Join(errs...)
		} else {
			err = domain.ErrPoolNotFound(token.ID())
		}
		span.SetStatus(codes.Error, err.Error())
		return domain.PoolDescriptor{}, err
	}

	pool := best.Descriptor
	pool.UpdatedAt = l.clock.Now()

	l.logger.Debug(ctx, "venue selected",
		"token", token.ID(),
		"venue", pool.String(),
		"liquidity_usd", best.LiquidityUSD.StringFixed(2),
		"candidates", len(candidates),
	)
	span.SetAttributes(
		attribute.String("dex", string(pool.Dex)),
		attribute.String("venue", pool.VenueID),
	)
	span.SetStatus(codes.Ok, "located")

	return pool, nil
}

// liquidityUSD values both sides of a candidate at its quote-side USD value.
func (l *Locator) liquidityUSD(ctx context.Context, c domain.Candidate) (decimal.Decimal, error) {
	switch c.Descriptor.QuoteClass {
	case domain.QuoteStable:
		return c.QuoteLiquidity.Mul(two), nil
	case domain.QuoteNative:
		if l.refs == nil {
			return decimal.Zero, apperror.New(apperror.CodeReferencePriceFailed,
				apperror.WithContext("native-quoted candidate without reference prices"))
		}
		price, err := l.refs.PriceUSD(ctx, c.Descriptor.Chain.ReferenceSymbol())
		if err != nil {
			return decimal.Zero, err
		}
		return c.QuoteLiquidity.Mul(price).Mul(two), nil
	default:
		return decimal.Zero, domain.ErrDecode("unknown quote class", nil)
	}
}
