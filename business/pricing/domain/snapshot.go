package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ReserveSnapshot is the state of a constant-product pool. A is the asset
// stored first (token0).
type ReserveSnapshot struct {
	ReserveA  *big.Int
	ReserveB  *big.Int
	DecimalsA uint8
	DecimalsB uint8
}

// ConcentratedLiquiditySnapshot is the price state of a concentrated-liquidity pool.
type ConcentratedLiquiditySnapshot struct {
	SqrtPriceX96 *big.Int
	Tick         int32
	Decimals0    uint8
	Decimals1    uint8
}

// VaultSnapshot holds decimal-normalized vault balances. Base is the asset
// being priced.
type VaultSnapshot struct {
	BaseBalance  decimal.Decimal
	QuoteBalance decimal.Decimal
}
