package asset

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrNilRaw          = errors.New("asset: nil raw value")
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrTooManyDecimals = errors.New("asset: too many decimal places for asset")
)

// Amount is an immutable Value Object representing an on-chain quantity.
// The raw value is always in the smallest unit (wei, lamports, etc) and
// carries the decimals needed to normalize it.
type Amount struct {
	raw      *big.Int
	decimals uint8
}

// NewAmount creates a new Amount from a raw big.Int value.
func NewAmount(raw *big.Int, decimals uint8) Amount {
	if raw == nil {
		panic(ErrNilRaw)
	}
	if raw.Sign() < 0 {
		panic(ErrNegativeAmount)
	}

	return Amount{
		raw:      new(big.Int).Set(raw), // defensive copy
		decimals: decimals,
	}
}

// NewAmountFromUint64 creates an Amount from a uint64 raw value.
func NewAmountFromUint64(raw uint64, decimals uint8) Amount {
	return NewAmount(new(big.Int).SetUint64(raw), decimals)
}

// Raw returns a copy of the raw big.Int value.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.raw)
}

// Decimals returns the precision the raw value is expressed in.
func (a Amount) Decimals() uint8 {
	return a.decimals
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

// Rat returns the normalized quantity raw / 10^decimals exactly.
func (a Amount) Rat() *big.Rat {
	if a.raw == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(a.raw, Pow10(int(a.decimals)))
}

// ToDecimal converts the amount to decimal.Decimal.
// This is a BOUNDARY function - use for display and persistence, not ratios.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.decimals))
}

// ParseUnits creates an Amount from an already normalized decimal string
// such as a token account's uiAmountString.
func ParseUnits(s string, decimals uint8) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("asset: invalid decimal string: %w", err)
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, ErrTooManyDecimals
	}

	return NewAmount(scaled.BigInt(), decimals), nil
}

// String returns the normalized value (e.g., "1.5").
func (a Amount) String() string {
	return a.ToDecimal().String()
}

var (
	pow10Mu    sync.RWMutex
	pow10Cache = map[int]*big.Int{}
)

// Pow10 returns 10^n for n >= 0. The result must not be mutated.
func Pow10(n int) *big.Int {
	if n < 0 {
		panic("asset: negative exponent")
	}

	pow10Mu.RLock()
	v, ok := pow10Cache[n]
	pow10Mu.RUnlock()
	if ok {
		return v
	}

	v = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	pow10Mu.Lock()
	pow10Cache[n] = v
	pow10Mu.Unlock()
	return v
}
