package uniswap

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Default fee tiers in hundredths of a bip.
const (
	FeeTier001 = 100   // 0.01%
	FeeTier005 = 500   // 0.05%
	FeeTier025 = 2500  // 0.25%, PancakeSwap
	FeeTier030 = 3000  // 0.30%
	FeeTier100 = 10000 // 1.00%
)

// V4Tier is a (fee, tick spacing) pair a V4 pool can be created with.
type V4Tier struct {
	Fee         uint32
	TickSpacing int32
}

// DefaultV4Tiers are the tiers with a standard tick spacing.
var DefaultV4Tiers = []V4Tier{
	{Fee: FeeTier001, TickSpacing: 1},
	{Fee: FeeTier005, TickSpacing: 10},
	{Fee: FeeTier030, TickSpacing: 60},
	{Fee: FeeTier100, TickSpacing: 200},
}

// V2 factory and pair.
const v2ABIJSON = `[
	{"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"name":"pair","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getReserves","outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"}
]`

// V3 factory and pool. slot0 is not listed: PancakeSwap widens
// feeProtocol, so its output is decoded by hand.
const v3ABIJSON = `[
	{"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"fee","type":"uint24"}],"name":"getPool","outputs":[{"name":"pool","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"slot0","outputs":[],"stateMutability":"view","type":"function"}
]`

// V4 StateView lens.
const stateViewABIJSON = `[
	{"inputs":[{"name":"poolId","type":"bytes32"}],"name":"getSlot0","outputs":[{"name":"sqrtPriceX96","type":"uint160"},{"name":"tick","type":"int24"},{"name":"protocolFee","type":"uint24"},{"name":"lpFee","type":"uint24"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"poolId","type":"bytes32"}],"name":"getLiquidity","outputs":[{"name":"liquidity","type":"uint128"}],"stateMutability":"view","type":"function"}
]`

const erc20ABIJSON = `[
	{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var (
	v2ABI        = mustParseABI(v2ABIJSON)
	v3ABI        = mustParseABI(v3ABIJSON)
	stateViewABI = mustParseABI(stateViewABIJSON)
	erc20ABI     = mustParseABI(erc20ABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
