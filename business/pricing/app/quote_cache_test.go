package app

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/clock"
)

func newQuoteCache(t *testing.T, venues *VenueSet, clk *clock.Fake, plans []ReferencePlan, sources ...ReferenceSource) *QuoteCurrencyCache {
	t.Helper()
	if venues == nil {
		venues = newVenues(t)
	}
	q, err := NewQuoteCurrencyCache(venues, sources, plans, &mockLogger{}, WithQuoteClock(clk))
	require.NoError(t, err)
	t.Cleanup(q.Close)
	return q
}

func TestQuoteCache_NoCallWithinTTL(t *testing.T) {
	clk := clock.NewFake(epoch)
	src := &fakeSource{name: "binance", price: decimal.NewFromInt(3100)}
	q := newQuoteCache(t, nil, clk, nil, src)
	ctx := context.Background()

	first, err := q.Entry(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, "aggregator:binance", first.Source)
	assert.Equal(t, epoch, first.ObservedAt)

	clk.Advance(59 * time.Second)
	second, err := q.PriceUSD(ctx, "ETH")
	require.NoError(t, err)
	assert.True(t, second.Equal(decimal.NewFromInt(3100)))
	assert.Equal(t, int32(1), src.calls.Load(), "second query within TTL must not resolve")

	clk.Advance(2 * time.Second)
	_, err = q.PriceUSD(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load(), "expired entry must resolve again")
}

func TestQuoteCache_ConcurrentExpiredRequestsCoalesce(t *testing.T) {
	clk := clock.NewFake(epoch)
	src := &fakeSource{
		name:    "coingecko",
		price:   decimal.NewFromInt(145),
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	q := newQuoteCache(t, nil, clk, nil, src)

	var wg sync.WaitGroup
	results := make([]decimal.Decimal, 2)
	errs := make([]error, 2)
	call := func(i int) {
		defer wg.Done()
		results[i], errs[i] = q.PriceUSD(context.Background(), "SOL")
	}

	wg.Add(1)
	go call(0)
	<-src.started

	wg.Add(1)
	go call(1)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Equal(decimal.NewFromInt(145)))
	}
	assert.Equal(t, int32(1), src.calls.Load(), "concurrent callers must share one resolution")
}

func TestQuoteCache_WaiterCancellation(t *testing.T) {
	src := &fakeSource{name: "slow", price: decimal.NewFromInt(1), gate: make(chan struct{})}
	q := newQuoteCache(t, nil, clock.NewFake(epoch), nil, src)
	defer close(src.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.PriceUSD(ctx, "BNB")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQuoteCache_HomeVenueThenSecondary(t *testing.T) {
	clk := clock.NewFake(epoch)

	weth := mustToken(t, asset.ChainEthereum, asset.AddrWETHEthereum, 18)
	home := pool(domain.DexUniswapV3, "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640", weth, asset.USDC)
	homeOK := true

	ethAdapter := &fakeAdapter{dex: domain.DexUniswapV3, chain: asset.ChainEthereum,
		ratio: func(domain.PoolDescriptor) (*big.Rat, error) {
			if !homeOK {
				return nil, domain.ErrDecode("slot0", nil)
			}
			return big.NewRat(3000, 1), nil
		}}

	ethBSC := mustToken(t, asset.ChainBSC, asset.AddrETHBSC, 18)
	bscAdapter := &fakeAdapter{dex: domain.DexPancakeV3, chain: asset.ChainBSC,
		discover: func(tok domain.Token, quotes []*asset.Asset) ([]domain.Candidate, error) {
			return []domain.Candidate{found(pool(domain.DexPancakeV3, "eth-usdt", tok, quotes[0]), "1000")}, nil
		},
		ratio: fixedRatio(big.NewRat(2990, 1)),
	}

	plans := []ReferencePlan{{
		Symbol:    "ETH",
		Home:      VenueRef{Token: weth, Pool: &home},
		Secondary: []VenueRef{{Token: ethBSC}},
	}}
	src := &fakeSource{name: "binance", price: decimal.NewFromInt(1)}
	q := newQuoteCache(t, newVenues(t, ethAdapter, bscAdapter), clk, plans, src)
	ctx := context.Background()

	e, err := q.Entry(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, domain.ReferenceHomeVenue, e.Source)
	assert.True(t, e.PriceUSD.Equal(decimal.NewFromInt(3000)))

	homeOK = false
	clk.Advance(DefaultQuoteTTL)

	e, err = q.Entry(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, domain.ReferenceSecondaryVenue, e.Source)
	assert.True(t, e.PriceUSD.Equal(decimal.NewFromInt(2990)))
	assert.Zero(t, src.calls.Load())

	// The discovered secondary venue is reused.
	clk.Advance(DefaultQuoteTTL)
	_, err = q.Entry(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, int32(1), bscAdapter.discoverCalls.Load())
}

func TestQuoteCache_AllSourcesFail(t *testing.T) {
	src := &fakeSource{name: "binance", err: apperror.New(apperror.CodeAggregatorFailed)}
	q := newQuoteCache(t, nil, clock.NewFake(epoch), nil, src)

	_, err := q.PriceUSD(context.Background(), "ETH")
	require.Error(t, err)
	assert.Equal(t, apperror.CodeReferencePriceFailed, apperror.GetCode(err))
}
