package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
)

func TestDefaultReferencePlans(t *testing.T) {
	plans, err := DefaultReferencePlans("")
	require.NoError(t, err)
	require.Len(t, plans, 3)

	eth := plans[0]
	assert.Equal(t, "ETH", eth.Symbol)
	require.NotNil(t, eth.Home.Pool)
	require.NoError(t, eth.Home.Pool.Validate())
	assert.True(t, strings.EqualFold(DefaultETHHomePool, eth.Home.Pool.VenueID))
	assert.Equal(t, domain.QuoteStable, eth.Home.Pool.QuoteClass)
	assert.Equal(t, uint32(500), eth.Home.Pool.FeeTier)
	assert.Equal(t, asset.ChainBSC, eth.Secondary[0].Token.Chain)

	for _, p := range plans[1:] {
		assert.Nil(t, p.Home.Pool, p.Symbol)
		require.Len(t, p.Secondary, 1)
		assert.Equal(t, asset.ChainEthereum, p.Secondary[0].Token.Chain, p.Symbol)
	}
	assert.Equal(t, asset.ChainSolana, plans[2].Home.Token.Chain)
}

func TestDefaultReferencePlans_BadPool(t *testing.T) {
	_, err := DefaultReferencePlans("not-an-address")
	require.Error(t, err)
	assert.Equal(t, apperror.CodeConfigurationError, apperror.GetCode(err))
}

func TestStablesBySymbol(t *testing.T) {
	got := StablesBySymbol([]string{" usdc", "USDT"}, nil, []string{""})
	assert.Equal(t, map[asset.Chain][]string{asset.ChainEthereum: {"USDC", "USDT"}}, got)
}
