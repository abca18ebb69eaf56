package app

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/clock"
)

type fakeTokenInfo struct {
	decimals uint8
	err      error
	calls    int
}

func (f *fakeTokenInfo) Decimals(context.Context, asset.Chain, string) (uint8, error) {
	f.calls++
	return f.decimals, f.err
}

func newTestService(t *testing.T, store PoolStore, tokens TokenInfoReader, adapters ...VenueAdapter) *PriceService {
	t.Helper()
	venues := newVenues(t, adapters...)
	refs := ethRefs(3000)
	clk := clock.NewFake(epoch)
	locator := NewLocator(venues, refs, clk, &mockLogger{})
	resolver, err := NewResolver(venues, locator, refs, nil, asset.DefaultRegistry(), clk, &mockLogger{})
	require.NoError(t, err)
	return NewPriceService(resolver, locator, store, tokens, nil, &mockLogger{})
}

func stableVenue() *fakeAdapter {
	return &fakeAdapter{dex: domain.DexUniswapV2, chain: asset.ChainEthereum,
		discover: func(tok domain.Token, quotes []*asset.Asset) ([]domain.Candidate, error) {
			return []domain.Candidate{found(pool(domain.DexUniswapV2, "v2-usdc", tok, asset.USDC), "25000")}, nil
		},
		ratio: fixedRatio(big.NewRat(12, 1)),
	}
}

func TestPriceService_PersistsDiscoveredVenue(t *testing.T) {
	store := newMemStore()
	v2 := stableVenue()
	svc := newTestService(t, store, nil, v2)

	req := PriceRequest{TokenID: "tok-1", Chain: asset.ChainEthereum, Identifier: uniAddress, Decimals: 18}

	first, err := svc.GetPriceUSD(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFreshVenue, first.Source)
	assert.True(t, first.PriceUSD.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, 1, store.saves)

	second, err := svc.GetPriceUSD(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCachedVenue, second.Source)
	assert.Equal(t, StageCached, second.Stage)
	assert.Equal(t, int32(1), v2.discoverCalls.Load())
	assert.Equal(t, 1, store.saves)
}

func TestPriceService_StoreReadErrorIsTolerated(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	svc := newTestService(t, store, nil, stableVenue())

	res, err := svc.GetPriceUSD(context.Background(), PriceRequest{
		Chain: asset.ChainEthereum, Identifier: uniAddress, Decimals: 18,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFreshVenue, res.Source)
}

func TestPriceService_InvalidInput(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil, stableVenue())

	_, err := svc.GetPriceUSD(context.Background(), PriceRequest{
		Chain: asset.ChainEthereum, Identifier: "not-an-address", Decimals: 18,
	})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidInput, apperror.GetCode(err))
}

func TestPriceService_AllSourcesFailed(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil,
		&fakeAdapter{dex: domain.DexUniswapV2, chain: asset.ChainEthereum})

	_, err := svc.GetPriceUSD(context.Background(), PriceRequest{
		Chain: asset.ChainEthereum, Identifier: uniAddress, Decimals: 18,
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeAllSourcesFailed))
}

func TestPriceService_FillsUnknownDecimals(t *testing.T) {
	info := &fakeTokenInfo{decimals: 18}
	var seen int
	v2 := stableVenue()
	v2.ratio = func(domain.PoolDescriptor) (*big.Rat, error) {
		return big.NewRat(1, 1), nil
	}
	v2.discover = func(tok domain.Token, _ []*asset.Asset) ([]domain.Candidate, error) {
		seen = tok.Decimals
		return []domain.Candidate{found(pool(domain.DexUniswapV2, "v2-usdc", tok, asset.USDC), "100")}, nil
	}
	svc := newTestService(t, newMemStore(), info, v2)

	_, err := svc.GetPriceUSD(context.Background(), PriceRequest{
		Chain: asset.ChainEthereum, Identifier: uniAddress, Decimals: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, info.calls)
	assert.Equal(t, 18, seen)
}

func TestPriceService_FindAndPersistBestPool(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil, stableVenue())

	p, err := svc.FindAndPersistBestPool(context.Background(), "tok-9", asset.ChainEthereum, uniAddress, 18)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "v2-usdc", p.VenueID)

	stored, err := store.Get(context.Background(), "tok-9")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, *p, *stored)
}

func TestPriceService_FindAndPersistBestPool_NoVenue(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil,
		&fakeAdapter{dex: domain.DexUniswapV2, chain: asset.ChainEthereum})

	p, err := svc.FindAndPersistBestPool(context.Background(), "tok-9", asset.ChainEthereum, uniAddress, 18)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Zero(t, store.saves)
}
