package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apm"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/clock"
	"github.com/fd1az/token-price-engine/internal/logger"
)

// Stage names, in execution order.
const (
	StageNative     = "native"
	StageCached     = "cached-venue"
	StageDiscovery  = "discovery"
	StageAggregator = "aggregator"
)

// Resolution is the outcome of one price resolution.
type Resolution struct {
	Quote domain.PriceQuote
	// Stage is the stage that produced the quote.
	Stage string
	// Discovered is set when discovery found the venue; the caller persists it.
	Discovered *domain.PoolDescriptor
}

// stage runs one fallback step. ok=false with a nil error means the stage
// does not apply to the request.
type stage struct {
	name string
	run  func(ctx context.Context, token domain.Token, cached *domain.PoolDescriptor) (res Resolution, ok bool, err error)
}

// resolverMetrics holds OTEL metric instruments.
type resolverMetrics struct {
	resolutions metric.Int64Counter
	latency     metric.Float64Histogram
}

// Resolver turns a token into a USD quote by falling back through its
// stages in order until one succeeds.
type Resolver struct {
	venues      *VenueSet
	locator     *Locator
	refs        ReferencePricer
	aggregators []AggregatorSource
	registry    *asset.Registry
	clock       clock.Clock
	stages      []stage

	logger  logger.LoggerInterface
	tracer  apm.Tracer
	metrics *resolverMetrics
}

// NewResolver creates a Resolver. aggregators are tried in order.
func NewResolver(
	venues *VenueSet,
	locator *Locator,
	refs ReferencePricer,
	aggregators []AggregatorSource,
	registry *asset.Registry,
	clk clock.Clock,
	log logger.LoggerInterface,
) (*Resolver, error) {
	if clk == nil {
		clk = clock.Real()
	}
	r := &Resolver{
		venues:      venues,
		locator:     locator,
		refs:        refs,
		aggregators: aggregators,
		registry:    registry,
		clock:       clk,
		logger:      log,
		tracer:      apm.NewTracer(tracerName),
	}
	r.stages = []stage{
		{name: StageNative, run: r.nativeStage},
		{name: StageCached, run: r.cachedStage},
		{name: StageDiscovery, run: r.discoveryStage},
		{name: StageAggregator, run: r.aggregatorStage},
	}

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return r, nil
}

// initMetrics initializes OTEL metric instruments.
func (r *Resolver) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &resolverMetrics{}

	r.metrics.resolutions, err = meter.Int64Counter(
		"price_resolutions_total",
		metric.WithDescription("Resolver stage outcomes"),
	)
	if err != nil {
		return err
	}

	r.metrics.latency, err = meter.Float64Histogram(
		"price_resolution_latency_ms",
		metric.WithDescription("End to end price resolution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Resolve returns a quote for token, or an ALL_SOURCES_FAILED error that
// wraps the failure of every stage. cached may be nil.
func (r *Resolver) Resolve(ctx context.Context, token domain.Token, cached *domain.PoolDescriptor) (Resolution, error) {
	ctx, span := r.tracer.StartSpan(ctx, "pricing.resolve",
		attribute.String("chain", string(token.Chain)),
		attribute.String("token", token.Identifier),
		attribute.Bool("cached_venue", cached != nil),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		r.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("chain", string(token.Chain))))
	}()

	var errs []error
	for _, st := range r.stages {
		res, ok, err := r.runStage(ctx, st, token, cached)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
			continue
		}
		if !ok {
			continue
		}

		span.SetAttributes(
			attribute.String("stage", st.name),
			attribute.String("source", string(res.Quote.Source)),
			attribute.String("price_usd", res.Quote.PriceUSD.String()),
		)
		span.SetStatus(codes.Ok, "resolved")
		return res, nil
	}

	err := domain.ErrAllSourcesFailed(token.ID(), errs...)
	span.NoticeError(err)
	r.logger.Warn(ctx, "all price sources failed", "token", token.ID(), "error", err)
	return Resolution{}, err
}

func (r *Resolver) runStage(ctx context.Context, st stage, token domain.Token, cached *domain.PoolDescriptor) (Resolution, bool, error) {
	ctx, span := r.tracer.StartSpan(ctx, "pricing.stage."+st.name, attribute.String("stage", st.name))
	defer span.End()

	res, ok, err := st.run(ctx, token, cached)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "failed"
		span.NoticeError(err)
		r.logger.Debug(ctx, "price stage failed",
			"stage", st.name, "token", token.ID(), "code", apperror.GetCode(err), "error", err)
	case !ok:
		outcome = "skipped"
	default:
		res.Stage = st.name
		span.SetStatus(codes.Ok, string(res.Quote.Source))
	}

	r.metrics.resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("chain", string(token.Chain)),
		attribute.String("stage", st.name),
		attribute.String("outcome", outcome),
	))
	return res, ok, err
}

// nativeStage serves the chain's wrapped reference asset from the quote cache.
func (r *Resolver) nativeStage(ctx context.Context, token domain.Token, _ *domain.PoolDescriptor) (Resolution, bool, error) {
	native, ok := r.registry.Native(token.Chain)
	if !ok || native.Identifier() != token.Identifier {
		return Resolution{}, false, nil
	}

	entry, err := r.refs.Entry(ctx, token.Chain.ReferenceSymbol())
	if err != nil {
		return Resolution{}, false, err
	}

	source := domain.SourceCachedVenue
	if entry.FromAggregator() {
		source = domain.SourceAggregator
	}
	quote, ok := domain.NewPriceQuote(entry.PriceUSD, source, entry.Source, entry.ObservedAt)
	if !ok {
		return Resolution{}, false, domain.ErrZeroLiquidity("reference price of " + entry.Asset)
	}
	return Resolution{Quote: quote}, true, nil
}

// cachedStage decodes the persisted venue.
func (r *Resolver) cachedStage(ctx context.Context, token domain.Token, cached *domain.PoolDescriptor) (Resolution, bool, error) {
	if cached == nil {
		return Resolution{}, false, nil
	}
	quote, err := r.venueQuote(ctx, token, *cached, domain.SourceCachedVenue)
	if err != nil {
		return Resolution{}, false, err
	}
	return Resolution{Quote: quote}, true, nil
}

// discoveryStage locates the best venue and decodes it.
func (r *Resolver) discoveryStage(ctx context.Context, token domain.Token, _ *domain.PoolDescriptor) (Resolution, bool, error) {
	pool, err := r.locator.Locate(ctx, token)
	if err != nil {
		return Resolution{}, false, err
	}
	quote, err := r.venueQuote(ctx, token, pool, domain.SourceFreshVenue)
	if err != nil {
		return Resolution{}, false, err
	}
	return Resolution{Quote: quote, Discovered: &pool}, true, nil
}

// aggregatorStage asks external APIs in priority order.
func (r *Resolver) aggregatorStage(ctx context.Context, token domain.Token, _ *domain.PoolDescriptor) (Resolution, bool, error) {
	var errs []error
	tried := 0

	for _, agg := range r.aggregators {
		if !agg.Supports(token.Chain) {
			continue
		}
		tried++

		aq, err := agg.TokenPriceUSD(ctx, token)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", agg.Name(), err))
			continue
		}
		quote, ok := domain.NewPriceQuote(aq.PriceUSD, domain.SourceAggregator, agg.Name(), r.clock.Now())
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", agg.Name(),
				apperror.New(apperror.CodeAggregatorNoPrice, apperror.WithContext(token.ID()))))
			continue
		}
		return Resolution{Quote: quote.WithMarketCap(aq.MarketCapUSD)}, true, nil
	}

	if tried == 0 {
		return Resolution{}, false, nil
	}
	return Resolution{}, false, apperror.New(apperror.CodeAggregatorFailed,
		apperror.WithContext(token.ID()),
		apperror.WithCause(errors.Join(errs...)))
}

// venueQuote decodes pool and converts its ratio to USD.
func (r *Resolver) venueQuote(ctx context.Context, token domain.Token, pool domain.PoolDescriptor, source domain.PriceSource) (domain.PriceQuote, error) {
	ratio, err := r.venues.Ratio(ctx, token, pool)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	price := domain.RatToDecimal(ratio)
	if pool.QuoteClass == domain.QuoteNative {
		ref, err := r.refs.PriceUSD(ctx, pool.Chain.ReferenceSymbol())
		if err != nil {
			return domain.PriceQuote{}, err
		}
		price = price.Mul(ref)
	}

	quote, ok := domain.NewPriceQuote(price, source, string(pool.Dex), r.clock.Now())
	if !ok {
		return domain.PriceQuote{}, domain.ErrZeroLiquidity(pool.String())
	}
	return quote, nil
}
