package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/cache"
	"github.com/fd1az/token-price-engine/internal/clock"
	"github.com/fd1az/token-price-engine/internal/logger"
)

const (
	meterName = "github.com/fd1az/token-price-engine/business/pricing/app"

	// DefaultQuoteTTL is how long a reference price stays fresh.
	DefaultQuoteTTL = 60 * time.Second

	// resolveTimeout bounds one shared resolution, independent of the
	// callers waiting on it.
	resolveTimeout = 30 * time.Second
)

// VenueRef is a venue used to price a reference asset against a stable.
type VenueRef struct {
	Token domain.Token
	// Pool pins the venue. When nil the venue is found by stable-only discovery.
	Pool *domain.PoolDescriptor
}

// ReferencePlan lists the sources of one reference asset in order.
type ReferencePlan struct {
	Symbol    string
	Home      VenueRef
	Secondary []VenueRef
}

// quoteCacheMetrics holds OTEL metric instruments.
type quoteCacheMetrics struct {
	hits        metric.Int64Counter
	misses      metric.Int64Counter
	resolutions metric.Int64Counter
}

// QuoteCurrencyCache holds the USD price of each chain's reference asset.
// Expired assets are resolved once no matter how many callers ask.
type QuoteCurrencyCache struct {
	venues  *VenueSet
	locator *Locator
	sources []ReferenceSource
	plans   map[string]ReferencePlan

	entries *cache.Cache[string, domain.QuoteCurrencyEntry]
	group   singleflight.Group
	clock   clock.Clock
	ttl     time.Duration

	// discovered venues, reused until they fail to decode
	mu     sync.Mutex
	venued map[string]domain.PoolDescriptor

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *quoteCacheMetrics
}

// QuoteCacheOption configures a QuoteCurrencyCache.
type QuoteCacheOption func(*QuoteCurrencyCache)

// WithQuoteTTL overrides DefaultQuoteTTL.
func WithQuoteTTL(ttl time.Duration) QuoteCacheOption {
	return func(q *QuoteCurrencyCache) {
		if ttl > 0 {
			q.ttl = ttl
		}
	}
}

// WithQuoteClock sets the time source for expiry and timestamps.
func WithQuoteClock(c clock.Clock) QuoteCacheOption {
	return func(q *QuoteCurrencyCache) {
		q.clock = c
	}
}

// NewQuoteCurrencyCache creates the cache. sources are tried in order after
// every venue has failed.
func NewQuoteCurrencyCache(venues *VenueSet, sources []ReferenceSource, plans []ReferencePlan, log logger.LoggerInterface, opts ...QuoteCacheOption) (*QuoteCurrencyCache, error) {
	q := &QuoteCurrencyCache{
		venues:  venues,
		sources: sources,
		plans:   make(map[string]ReferencePlan, len(plans)),
		clock:   clock.Real(),
		ttl:     DefaultQuoteTTL,
		venued:  make(map[string]domain.PoolDescriptor),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(q)
	}
	for _, p := range plans {
		q.plans[p.Symbol] = p
	}

	q.entries = cache.New[string, domain.QuoteCurrencyEntry](q.ttl, cache.WithClock(q.clock))
	q.locator = NewLocator(venues, nil, q.clock, log)

	if err := q.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return q, nil
}

// initMetrics initializes OTEL metric instruments.
func (q *QuoteCurrencyCache) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	q.metrics = &quoteCacheMetrics{}

	q.metrics.hits, err = meter.Int64Counter(
		"quote_cache_hits_total",
		metric.WithDescription("Reference price lookups served from cache"),
	)
	if err != nil {
		return err
	}

	q.metrics.misses, err = meter.Int64Counter(
		"quote_cache_misses_total",
		metric.WithDescription("Reference price lookups that found no fresh entry"),
	)
	if err != nil {
		return err
	}

	q.metrics.resolutions, err = meter.Int64Counter(
		"quote_cache_resolutions_total",
		metric.WithDescription("Reference price resolutions by outcome source"),
	)
	if err != nil {
		return err
	}

	return nil
}

// PriceUSD returns the USD price of a reference asset.
func (q *QuoteCurrencyCache) PriceUSD(ctx context.Context, symbol string) (decimal.Decimal, error) {
	e, err := q.Entry(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return e.PriceUSD, nil
}

// Entry returns the fresh entry of symbol, resolving it when missing or expired.
func (q *QuoteCurrencyCache) Entry(ctx context.Context, symbol string) (domain.QuoteCurrencyEntry, error) {
	attrs := metric.WithAttributes(attribute.String("asset", symbol))

	if e, ok := q.entries.Get(ctx, symbol); ok {
		q.metrics.hits.Add(ctx, 1, attrs)
		return e, nil
	}
	q.metrics.misses.Add(ctx, 1, attrs)

	ch := q.group.DoChan(symbol, func() (interface{}, error) {
		resolveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		return q.resolve(resolveCtx, symbol)
	})

	select {
	case <-ctx.Done():
		return domain.QuoteCurrencyEntry{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.QuoteCurrencyEntry{}, res.Err
		}
		return res.Val.(domain.QuoteCurrencyEntry), nil
	}
}

// Snapshot returns every stored entry, expired ones included.
func (q *QuoteCurrencyCache) Snapshot(ctx context.Context) []domain.QuoteCurrencyEntry {
	var out []domain.QuoteCurrencyEntry
	for _, c := range asset.SupportedChains() {
		if e, ok := q.entries.Peek(ctx, c.ReferenceSymbol()); ok {
			out = append(out, e.Value)
		}
	}
	return out
}

func (q *QuoteCurrencyCache) resolve(ctx context.Context, symbol string) (domain.QuoteCurrencyEntry, error) {
	// A flight that finished just before this one started already stored it.
	if e, ok := q.entries.Get(ctx, symbol); ok {
		return e, nil
	}

	ctx, span := q.tracer.Start(ctx, "pricing.reference_price",
		trace.WithAttributes(attribute.String("asset", symbol)),
	)
	defer span.End()

	var errs []error
	store := func(price decimal.Decimal, source string) domain.QuoteCurrencyEntry {
		e := domain.QuoteCurrencyEntry{
			Asset:      symbol,
			PriceUSD:   price,
			ObservedAt: q.clock.Now(),
			Source:     source,
		}
		q.entries.Set(ctx, symbol, e, q.ttl)
		q.metrics.resolutions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("asset", symbol),
			attribute.String("source", source),
		))
		span.SetAttributes(attribute.String("source", source), attribute.String("price_usd", price.String()))
		span.SetStatus(codes.Ok, "resolved")
		q.logger.Debug(ctx, "reference price resolved", "asset", symbol, "price_usd", price.String(), "source", source)
		return e
	}

	if plan, ok := q.plans[symbol]; ok {
		price, err := q.priceVia(ctx, symbol, plan.Home)
		if err == nil {
			return store(price, domain.ReferenceHomeVenue), nil
		}
		errs = append(errs, fmt.Errorf("home venue: %w", err))

		for _, ref := range plan.Secondary {
			price, err := q.priceVia(ctx, symbol, ref)
			if err == nil {
				return store(price, domain.ReferenceSecondaryVenue), nil
			}
			errs = append(errs, fmt.Errorf("secondary venue %s: %w", ref.Token.Chain, err))
		}
	}

	for _, src := range q.sources {
		price, err := src.ReferencePriceUSD(ctx, symbol)
		if err == nil && price.IsPositive() {
			return store(price, domain.AggregatorReference(src.Name())), nil
		}
		if err == nil {
			err = apperror.New(apperror.CodeAggregatorNoPrice, apperror.WithContext(src.Name()))
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}

	err := apperror.New(apperror.CodeReferencePriceFailed,
		apperror.WithContext(symbol),
		apperror.WithCause(errors.Join(errs...)))
	span.RecordError(err)
	span.SetStatus(codes.Error, "no reference source")
	q.logger.Warn(ctx, "reference price unavailable", "asset", symbol, "error", err)
	return domain.QuoteCurrencyEntry{}, err
}

// priceVia prices a reference asset on a stable-quoted venue.
func (q *QuoteCurrencyCache) priceVia(ctx context.Context, symbol string, ref VenueRef) (decimal.Decimal, error) {
	if len(q.venues.Adapters(ref.Token.Chain)) == 0 {
		return decimal.Zero, apperror.New(apperror.CodeUnsupportedChain, apperror.WithContext(string(ref.Token.Chain)))
	}

	key := symbol + "@" + string(ref.Token.Chain)
	pool, discovered, err := q.venueFor(ctx, key, ref)
	if err != nil {
		return decimal.Zero, err
	}
	if pool.QuoteClass != domain.QuoteStable {
		return decimal.Zero, domain.ErrDecode("reference venue "+pool.String()+" is not stable-quoted", nil)
	}

	ratio, err := q.venues.Ratio(ctx, ref.Token, pool)
	if err != nil {
		if discovered {
			q.forget(key)
		}
		return decimal.Zero, err
	}

	price := domain.RatToDecimal(ratio)
	if !price.IsPositive() {
		return decimal.Zero, domain.ErrZeroLiquidity(pool.String())
	}
	return price, nil
}

func (q *QuoteCurrencyCache) venueFor(ctx context.Context, key string, ref VenueRef) (domain.PoolDescriptor, bool, error) {
	if ref.Pool != nil {
		return *ref.Pool, false, nil
	}

	q.mu.Lock()
	pool, ok := q.venued[key]
	q.mu.Unlock()
	if ok {
		return pool, true, nil
	}

	pool, err := q.locator.LocateStable(ctx, ref.Token)
	if err != nil {
		return domain.PoolDescriptor{}, false, err
	}

	q.mu.Lock()
	q.venued[key] = pool
	q.mu.Unlock()
	return pool, true, nil
}

func (q *QuoteCurrencyCache) forget(key string) {
	q.mu.Lock()
	delete(q.venued, key)
	q.mu.Unlock()
}

// Close releases the underlying cache.
func (q *QuoteCurrencyCache) Close() {
	q.entries.Close()
}
