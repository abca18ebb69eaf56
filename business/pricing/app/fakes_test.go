package app

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/clock"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

const uniAddress = "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func mustToken(t *testing.T, chain asset.Chain, identifier string, decimals int) domain.Token {
	t.Helper()
	tok, err := domain.NewToken(chain, identifier, decimals)
	require.NoError(t, err)
	return tok
}

// pool builds a descriptor of dex pricing token against quote.
func pool(dex domain.Dex, venue string, token domain.Token, quote *asset.Asset) domain.PoolDescriptor {
	class, _ := domain.ClassOf(quote)
	return domain.PoolDescriptor{
		Chain:           token.Chain,
		Protocol:        dex.Protocol(),
		Dex:             dex,
		VenueID:         venue,
		TokenIdentifier: token.Identifier,
		QuoteAsset:      quote.Identifier(),
		QuoteClass:      class,
		PairSymbol:      "TKN/" + quote.Symbol(),
	}
}

// fakeAdapter is a scripted VenueAdapter.
type fakeAdapter struct {
	dex   domain.Dex
	chain asset.Chain

	discover func(token domain.Token, quotes []*asset.Asset) ([]domain.Candidate, error)
	ratio    func(pool domain.PoolDescriptor) (*big.Rat, error)

	discoverCalls atomic.Int32
	ratioCalls    atomic.Int32

	mu         sync.Mutex
	lastQuotes []*asset.Asset
}

func (f *fakeAdapter) Dex() domain.Dex    { return f.dex }
func (f *fakeAdapter) Chain() asset.Chain { return f.chain }

func (f *fakeAdapter) Discover(_ context.Context, token domain.Token, quotes []*asset.Asset) ([]domain.Candidate, error) {
	f.discoverCalls.Add(1)
	f.mu.Lock()
	f.lastQuotes = quotes
	f.mu.Unlock()
	if f.discover == nil {
		return nil, nil
	}
	return f.discover(token, quotes)
}

func (f *fakeAdapter) Ratio(_ context.Context, _ domain.Token, p domain.PoolDescriptor) (*big.Rat, error) {
	f.ratioCalls.Add(1)
	if f.ratio == nil {
		return nil, domain.ErrDecode("no ratio scripted", nil)
	}
	return f.ratio(p)
}

func (f *fakeAdapter) quotesSeen() []*asset.Asset {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuotes
}

func fixedRatio(r *big.Rat) func(domain.PoolDescriptor) (*big.Rat, error) {
	return func(domain.PoolDescriptor) (*big.Rat, error) {
		return new(big.Rat).Set(r), nil
	}
}

// fakeRefs is a ReferencePricer with fixed prices.
type fakeRefs struct {
	prices map[string]decimal.Decimal
	calls  atomic.Int32
}

func (f *fakeRefs) PriceUSD(ctx context.Context, symbol string) (decimal.Decimal, error) {
	e, err := f.Entry(ctx, symbol)
	return e.PriceUSD, err
}

func (f *fakeRefs) Entry(_ context.Context, symbol string) (domain.QuoteCurrencyEntry, error) {
	f.calls.Add(1)
	p, ok := f.prices[symbol]
	if !ok {
		return domain.QuoteCurrencyEntry{}, apperror.New(apperror.CodeReferencePriceFailed, apperror.WithContext(symbol))
	}
	return domain.QuoteCurrencyEntry{Asset: symbol, PriceUSD: p, ObservedAt: epoch, Source: domain.ReferenceHomeVenue}, nil
}

// fakeSource is a ReferenceSource counting its calls. When gate is set every
// call blocks until it is closed.
type fakeSource struct {
	name    string
	price   decimal.Decimal
	err     error
	gate    chan struct{}
	started chan struct{}
	calls   atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) ReferencePriceUSD(ctx context.Context, _ string) (decimal.Decimal, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		}
	}
	return f.price, f.err
}

// fakeAggregator is a scripted AggregatorSource.
type fakeAggregator struct {
	name   string
	chains []asset.Chain
	quote  domain.AggregatorQuote
	err    error
	calls  atomic.Int32
}

func (f *fakeAggregator) Name() string { return f.name }

func (f *fakeAggregator) Supports(chain asset.Chain) bool {
	for _, c := range f.chains {
		if c == chain {
			return true
		}
	}
	return false
}

func (f *fakeAggregator) TokenPriceUSD(context.Context, domain.Token) (domain.AggregatorQuote, error) {
	f.calls.Add(1)
	return f.quote, f.err
}

// memStore is an in-memory PoolStore.
type memStore struct {
	mu    sync.Mutex
	pools map[string]domain.PoolDescriptor
	err   error
	saves int
}

func newMemStore() *memStore {
	return &memStore{pools: make(map[string]domain.PoolDescriptor)}
}

func (m *memStore) Get(_ context.Context, tokenID string) (*domain.PoolDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.pools[tokenID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) Save(_ context.Context, tokenID string, p domain.PoolDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.pools[tokenID] = p
	m.saves++
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.err }

func newVenues(t *testing.T, adapters ...VenueAdapter) *VenueSet {
	t.Helper()
	v, err := NewVenueSet(asset.DefaultRegistry(), nil, adapters...)
	require.NoError(t, err)
	return v
}

func newTestResolver(t *testing.T, venues *VenueSet, refs ReferencePricer, aggs ...AggregatorSource) *Resolver {
	t.Helper()
	clk := clock.NewFake(epoch)
	r, err := NewResolver(venues, NewLocator(venues, refs, clk, &mockLogger{}), refs, aggs, asset.DefaultRegistry(), clk, &mockLogger{})
	require.NoError(t, err)
	return r
}
