package domain

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-price-engine/internal/apperror"
)

func TestConstantProductRatio_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		reserveA := new(big.Int).Rand(rng, new(big.Int).Lsh(big.NewInt(1), 112))
		reserveB := new(big.Int).Rand(rng, new(big.Int).Lsh(big.NewInt(1), 112))
		reserveA.Add(reserveA, big.NewInt(1))
		reserveB.Add(reserveB, big.NewInt(1))
		decA := uint8(rng.Intn(25))
		decB := uint8(rng.Intn(25))

		stored := ReserveSnapshot{ReserveA: reserveA, ReserveB: reserveB, DecimalsA: decA, DecimalsB: decB}
		swapped := ReserveSnapshot{ReserveA: reserveB, ReserveB: reserveA, DecimalsA: decB, DecimalsB: decA}

		direct, err := ConstantProductRatio(stored, true)
		require.NoError(t, err)
		mirrored, err := ConstantProductRatio(swapped, false)
		require.NoError(t, err)

		assert.Zero(t, direct.Cmp(mirrored), "price of A must not depend on storage order")
	}
}

func TestConstantProductRatio_SoleVenueScenario(t *testing.T) {
	// 1,000,000 tokens against 10 WETH, WETH at $600.
	token := new(big.Int).Mul(big.NewInt(1_000_000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	weth := new(big.Int).Mul(big.NewInt(10), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

	ratio, err := ConstantProductRatio(ReserveSnapshot{
		ReserveA: weth, ReserveB: token, DecimalsA: 18, DecimalsB: 18,
	}, false)
	require.NoError(t, err)

	usd := RatToDecimal(ratio).Mul(decimal.NewFromInt(600))
	assert.True(t, usd.Equal(decimal.RequireFromString("0.006")), "got %s", usd)
}

func TestConstantProductRatio_ZeroReserve(t *testing.T) {
	_, err := ConstantProductRatio(ReserveSnapshot{
		ReserveA: big.NewInt(0), ReserveB: big.NewInt(10),
	}, true)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeZeroLiquidity, apperror.GetCode(err))
}

func TestSqrtPriceRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	limit := new(big.Int).Lsh(big.NewInt(1), 160)

	for i := 0; i < 500; i++ {
		sqrt := new(big.Int).Rand(rng, limit)
		sqrt.Add(sqrt, big.NewInt(1))

		assert.Zero(t, sqrt.Cmp(RatioToSqrtPriceX96(SqrtPriceX96ToRatio(sqrt))))

		snap := ConcentratedLiquiditySnapshot{
			SqrtPriceX96: sqrt,
			Decimals0:    uint8(rng.Intn(19)),
			Decimals1:    uint8(rng.Intn(19)),
		}
		p0, err := ConcentratedRatio(snap, true)
		require.NoError(t, err)
		p1, err := ConcentratedRatio(snap, false)
		require.NoError(t, err)

		product := new(big.Rat).Mul(p0, p1)
		assert.Zero(t, product.Cmp(big.NewRat(1, 1)), "price times inverse must be one")
	}
}

func TestConcentratedRatio_DecimalScaling(t *testing.T) {
	one := new(big.Int).Lsh(big.NewInt(1), 96)
	snap := ConcentratedLiquiditySnapshot{SqrtPriceX96: one, Decimals0: 18, Decimals1: 6}

	p0, err := ConcentratedRatio(snap, true)
	require.NoError(t, err)
	assert.Zero(t, p0.Cmp(new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil))))

	p1, err := ConcentratedRatio(snap, false)
	require.NoError(t, err)
	assert.Zero(t, p1.Cmp(new(big.Rat).SetFrac(big.NewInt(1), new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil))))
}

func TestConcentratedRatio_USDCWETH(t *testing.T) {
	// USDC (6) is token0, WETH (18) token1; WETH at 2000 USDC means
	// raw token1/token0 = 1e12 / 2000.
	raw := new(big.Rat).SetFrac(new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil), big.NewInt(2000))
	sqrt := RatioToSqrtPriceX96(raw)

	price, err := ConcentratedRatio(ConcentratedLiquiditySnapshot{SqrtPriceX96: sqrt, Decimals0: 6, Decimals1: 18}, false)
	require.NoError(t, err)

	got, _ := price.Float64()
	assert.InDelta(t, 2000, got, 1e-6)
}

func TestConcentratedRatio_ZeroPrice(t *testing.T) {
	_, err := ConcentratedRatio(ConcentratedLiquiditySnapshot{SqrtPriceX96: big.NewInt(0)}, true)
	assert.Equal(t, apperror.CodeZeroLiquidity, apperror.GetCode(err))
}

func TestVaultRatio(t *testing.T) {
	ratio, err := VaultRatio(VaultSnapshot{
		BaseBalance:  decimal.RequireFromString("250000"),
		QuoteBalance: decimal.RequireFromString("1250.5"),
	})
	require.NoError(t, err)
	assert.True(t, RatToDecimal(ratio).Equal(decimal.RequireFromString("0.005002")))

	_, err = VaultRatio(VaultSnapshot{BaseBalance: decimal.Zero, QuoteBalance: decimal.NewFromInt(1)})
	assert.Equal(t, apperror.CodeZeroLiquidity, apperror.GetCode(err))
}

func TestVirtualReserves(t *testing.T) {
	one := new(big.Int).Lsh(big.NewInt(1), 96)
	r0, r1 := VirtualReserves(big.NewInt(1_000_000), one)
	assert.Zero(t, r0.Cmp(big.NewRat(1_000_000, 1)))
	assert.Zero(t, r1.Cmp(big.NewRat(1_000_000, 1)))

	r0, r1 = VirtualReserves(big.NewInt(0), one)
	assert.Zero(t, r0.Sign())
	assert.Zero(t, r1.Sign())
}
