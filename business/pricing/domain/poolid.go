package domain

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NativeCurrency is how V4 pool keys denote the chain's native asset.
var NativeCurrency = common.Address{}

// V4PoolKey is the tuple a Uniswap V4 pool id is hashed from. Currency0 is
// always the lower address.
type V4PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         uint32
	TickSpacing int32
	Hooks       common.Address
}

// NewV4PoolKey orders the two currencies canonically.
func NewV4PoolKey(a, b common.Address, fee uint32, tickSpacing int32, hooks common.Address) V4PoolKey {
	c0, c1 := SortAddresses(a, b)
	return V4PoolKey{
		Currency0:   c0,
		Currency1:   c1,
		Fee:         fee,
		TickSpacing: tickSpacing,
		Hooks:       hooks,
	}
}

var poolKeyArguments = mustArguments("address", "address", "uint24", "int24", "address")

// ID returns keccak256(abi.encode(currency0, currency1, fee, tickSpacing, hooks)).
func (k V4PoolKey) ID() (common.Hash, error) {
	if k.Fee >= 1<<24 {
		return common.Hash{}, fmt.Errorf("fee %d exceeds uint24", k.Fee)
	}
	if k.TickSpacing >= 1<<23 || k.TickSpacing < -(1<<23) {
		return common.Hash{}, fmt.Errorf("tick spacing %d exceeds int24", k.TickSpacing)
	}

	encoded, err := poolKeyArguments.Pack(
		k.Currency0,
		k.Currency1,
		big.NewInt(int64(k.Fee)),
		big.NewInt(int64(k.TickSpacing)),
		k.Hooks,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode pool key: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// V4PoolID computes the pool id for a pair, fee tier and tick spacing.
func V4PoolID(a, b common.Address, fee uint32, tickSpacing int32, hooks common.Address) (common.Hash, error) {
	return NewV4PoolKey(a, b, fee, tickSpacing, hooks).ID()
}

// SortAddresses returns the two addresses in ascending byte order.
func SortAddresses(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) <= 0 {
		return a, b
	}
	return b, a
}

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("abi type %s: %v", t, err))
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}
