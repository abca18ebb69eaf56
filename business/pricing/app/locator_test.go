package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/clock"
)

func found(p domain.PoolDescriptor, quoteLiquidity string) domain.Candidate {
	return domain.Candidate{Descriptor: p, QuoteLiquidity: decimal.RequireFromString(quoteLiquidity)}
}

func TestLocator_SelectsGreatestUSDLiquidity(t *testing.T) {
	tok := mustToken(t, asset.ChainEthereum, uniAddress, 18)

	v4 := &fakeAdapter{dex: domain.DexUniswapV4, chain: asset.ChainEthereum,
		discover: func(tok domain.Token, _ []*asset.Asset) ([]domain.Candidate, error) {
			// 10 WETH at $600 = $12,000 total
			return []domain.Candidate{found(pool(domain.DexUniswapV4, "v4-weth", tok, asset.WETH), "10")}, nil
		}}
	v3 := &fakeAdapter{dex: domain.DexUniswapV3, chain: asset.ChainEthereum,
		discover: func(tok domain.Token, _ []*asset.Asset) ([]domain.Candidate, error) {
			return []domain.Candidate{
				found(pool(domain.DexUniswapV3, "v3-weth-3000", tok, asset.WETH), "20"),
				found(pool(domain.DexUniswapV3, "v3-weth-500", tok, asset.WETH), "5"),
			}, nil
		}}
	v2 := &fakeAdapter{dex: domain.DexUniswapV2, chain: asset.ChainEthereum,
		discover: func(tok domain.Token, _ []*asset.Asset) ([]domain.Candidate, error) {
			return []domain.Candidate{found(pool(domain.DexUniswapV2, "v2-usdc", tok, asset.USDC), "11999")}, nil
		}}

	refs := &fakeRefs{prices: map[string]decimal.Decimal{"ETH": decimal.NewFromInt(600)}}
	loc := NewLocator(newVenues(t, v4, v3, v2), refs, clock.NewFake(epoch), &mockLogger{})

	got, err := loc.Locate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "v3-weth-3000", got.VenueID)
	assert.Equal(t, epoch, got.UpdatedAt)
}

func TestLocator_TieGoesToPreferredProtocol(t *testing.T) {
	tok := mustToken(t, asset.ChainEthereum, uniAddress, 18)
	same := func(dex domain.Dex) *fakeAdapter {
		return &fakeAdapter{dex: dex, chain: asset.ChainEthereum,
			discover: func(tok domain.Token, _ []*asset.Asset) ([]domain.Candidate, error) {
				return []domain.Candidate{found(pool(dex, string(dex), tok, asset.USDC), "1000")}, nil
			}}
	}

	loc := NewLocator(newVenues(t, same(domain.DexUniswapV4), same(domain.DexUniswapV3), same(domain.DexUniswapV2)),
		nil, clock.NewFake(epoch), &mockLogger{})

	got, err := loc.Locate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, domain.DexUniswapV4, got.Dex)
}

func TestLocator_NotFound(t *testing.T) {
	tok := mustToken(t, asset.ChainEthereum, uniAddress, 18)
	empty := &fakeAdapter{dex: domain.DexUniswapV2, chain: asset.ChainEthereum}
	zero := &fakeAdapter{dex: domain.DexUniswapV3, chain: asset.ChainEthereum,
		discover: func(tok domain.Token, _ []*asset.Asset) ([]domain.Candidate, error) {
			return []domain.Candidate{found(pool(domain.DexUniswapV3, "dry", tok, asset.USDC), "0")}, nil
		}}

	loc := NewLocator(newVenues(t, zero, empty), nil, nil, &mockLogger{})

	_, err := loc.Locate(context.Background(), tok)
	require.Error(t, err)
	assert.True(t, domain.IsPoolNotFound(err))
}

func TestLocator_EveryProtocolFailing_IsNotNotFound(t *testing.T) {
	tok := mustToken(t, asset.ChainEthereum, uniAddress, 18)
	failing := &fakeAdapter{dex: domain.DexUniswapV2, chain: asset.ChainEthereum,
		discover: func(domain.Token, []*asset.Asset) ([]domain.Candidate, error) {
			return nil, apperror.New(apperror.CodeRPCTimeout)
		}}

	loc := NewLocator(newVenues(t, failing), nil, nil, &mockLogger{})

	_, err := loc.Locate(context.Background(), tok)
	require.Error(t, err)
	assert.False(t, domain.IsPoolNotFound(err))
	assert.True(t, errors.Is(err, apperror.New(apperror.CodeRPCTimeout)))
}

func TestLocator_StableOnly(t *testing.T) {
	tok := mustToken(t, asset.ChainBSC, asset.AddrWBNBBSC, 18)
	adapter := &fakeAdapter{dex: domain.DexPancakeV3, chain: asset.ChainBSC,
		discover: func(tok domain.Token, quotes []*asset.Asset) ([]domain.Candidate, error) {
			return []domain.Candidate{found(pool(domain.DexPancakeV3, "wbnb-usdt", tok, quotes[0]), "5000000")}, nil
		}}

	loc := NewLocator(newVenues(t, adapter), nil, nil, &mockLogger{})

	got, err := loc.LocateStable(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, domain.QuoteStable, got.QuoteClass)

	for _, q := range adapter.quotesSeen() {
		assert.True(t, q.IsStable(), "%s offered as a stable-only quote", q.Symbol())
		assert.NotEqual(t, asset.AddrWBNBBSC, q.Identifier())
	}
}

func TestVenueSet_QuotesNativeFirstWithoutSelf(t *testing.T) {
	adapter := &fakeAdapter{dex: domain.DexUniswapV2, chain: asset.ChainEthereum}
	v := newVenues(t, adapter)

	quotes := v.Quotes(mustToken(t, asset.ChainEthereum, uniAddress, 18), false)
	require.Len(t, quotes, 3)
	assert.Equal(t, "WETH", quotes[0].Symbol())

	quotes = v.Quotes(mustToken(t, asset.ChainEthereum, asset.AddrUSDCEthereum, 6), false)
	for _, q := range quotes {
		assert.NotEqual(t, "USDC", q.Symbol())
	}
}

func TestNewVenueSet_RejectsNonStableQuote(t *testing.T) {
	adapter := &fakeAdapter{dex: domain.DexUniswapV2, chain: asset.ChainEthereum}
	_, err := NewVenueSet(asset.DefaultRegistry(), map[asset.Chain][]string{asset.ChainEthereum: {"BNB"}}, adapter)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeConfigurationError, apperror.GetCode(err))
}
