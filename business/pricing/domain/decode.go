package domain

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fd1az/token-price-engine/internal/asset"
)

// ratPrecision is the number of decimal places kept when a ratio leaves big.Rat.
const ratPrecision = 36

var (
	q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	q192 = new(big.Int).Lsh(big.NewInt(1), 192)
)

// ConstantProductRatio returns the price of the target asset in units of its
// pair asset. targetIsA says whether the target is stored first.
func ConstantProductRatio(s ReserveSnapshot, targetIsA bool) (*big.Rat, error) {
	if s.ReserveA == nil || s.ReserveB == nil {
		return nil, ErrDecode("constant-product snapshot has nil reserves", nil)
	}
	if s.ReserveA.Sign() <= 0 || s.ReserveB.Sign() <= 0 {
		return nil, ErrZeroLiquidity("constant-product reserves")
	}

	a := normalize(s.ReserveA, s.DecimalsA)
	b := normalize(s.ReserveB, s.DecimalsB)

	if targetIsA {
		return a.Quo(b, a), nil
	}
	return b.Quo(a, b), nil
}

// SqrtPriceX96ToRatio returns (sqrtPriceX96 / 2^96)^2, the raw token1 per token0 ratio.
func SqrtPriceX96ToRatio(sqrtPriceX96 *big.Int) *big.Rat {
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	return new(big.Rat).SetFrac(num, q192)
}

// RatioToSqrtPriceX96 is the inverse of SqrtPriceX96ToRatio, rounded down.
func RatioToSqrtPriceX96(r *big.Rat) *big.Int {
	num := new(big.Int).Mul(r.Num(), q192)
	num.Quo(num, r.Denom())
	return num.Sqrt(num)
}

// ConcentratedRatio returns the price of the target asset in units of the
// other asset. The token0 price is the raw ratio scaled by 10^(decimals0-decimals1);
// a token1 target takes the inverse.
func ConcentratedRatio(s ConcentratedLiquiditySnapshot, targetIsToken0 bool) (*big.Rat, error) {
	if s.SqrtPriceX96 == nil {
		return nil, ErrDecode("concentrated snapshot has nil price", nil)
	}
	if s.SqrtPriceX96.Sign() <= 0 {
		return nil, ErrZeroLiquidity("sqrt price is zero")
	}

	price0 := SqrtPriceX96ToRatio(s.SqrtPriceX96)
	price0 = scale(price0, int(s.Decimals0)-int(s.Decimals1))

	if targetIsToken0 {
		return price0, nil
	}
	return price0.Inv(price0), nil
}

// VaultRatio returns quote balance / base balance.
func VaultRatio(s VaultSnapshot) (*big.Rat, error) {
	if s.BaseBalance.Sign() <= 0 || s.QuoteBalance.Sign() <= 0 {
		return nil, ErrZeroLiquidity("vault balances")
	}
	q := s.QuoteBalance.Rat()
	return q.Quo(q, s.BaseBalance.Rat()), nil
}

// VirtualReserves returns the raw token amounts L/sqrtP and L*sqrtP implied
// by a concentrated pool's in-range liquidity.
func VirtualReserves(liquidity, sqrtPriceX96 *big.Int) (reserve0, reserve1 *big.Rat) {
	if liquidity == nil || sqrtPriceX96 == nil || liquidity.Sign() <= 0 || sqrtPriceX96.Sign() <= 0 {
		return new(big.Rat), new(big.Rat)
	}
	l := new(big.Int).Set(liquidity)
	reserve0 = new(big.Rat).SetFrac(new(big.Int).Mul(l, q96), sqrtPriceX96)
	reserve1 = new(big.Rat).SetFrac(new(big.Int).Mul(l, sqrtPriceX96), q96)
	return reserve0, reserve1
}

// RatToDecimal converts a ratio for use at the USD boundary.
func RatToDecimal(r *big.Rat) decimal.Decimal {
	return decimal.RequireFromString(r.FloatString(ratPrecision))
}

// NormalizeRaw returns raw / 10^decimals as a decimal.
func NormalizeRaw(raw *big.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

func normalize(raw *big.Int, decimals uint8) *big.Rat {
	return new(big.Rat).SetFrac(raw, asset.Pow10(int(decimals)))
}

func scale(r *big.Rat, exp int) *big.Rat {
	switch {
	case exp > 0:
		return r.Mul(r, new(big.Rat).SetInt(asset.Pow10(exp)))
	case exp < 0:
		return r.Quo(r, new(big.Rat).SetInt(asset.Pow10(-exp)))
	default:
		return r
	}
}
