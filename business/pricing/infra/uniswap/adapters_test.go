package uniswap

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var (
	uni       = common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984") // sorts before WETH
	crv       = common.HexToAddress("0xD533a949740bb3306d119CC777fa900bA034cd52") // sorts after WETH
	factory   = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	stateView = common.HexToAddress("0x7fFE42C4a5DEeA5b0feC41C94C136Cf115597227")
	pairAddr  = common.HexToAddress("0xd3d2E2692501A5c9Ca623199D38826e513033a17")
)

// handler answers one decoded contract call.
type handler func(to common.Address, method string, args []any) ([]byte, error)

// fakeChain is an EVMReader that decodes calldata against the adapter ABIs.
type fakeChain struct {
	t      *testing.T
	handle handler

	mu    sync.Mutex
	calls map[string]int
}

func newFakeChain(t *testing.T, h handler) *fakeChain {
	return &fakeChain{t: t, handle: h, calls: make(map[string]int)}
}

func (f *fakeChain) Chain() asset.Chain { return asset.ChainEthereum }

func (f *fakeChain) CallContract(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	for _, parsed := range []abi.ABI{v2ABI, v3ABI, stateViewABI, erc20ABI} {
		method, err := parsed.MethodById(data[:4])
		if err != nil {
			continue
		}
		args, err := method.Inputs.Unpack(data[4:])
		require.NoError(f.t, err)

		f.mu.Lock()
		f.calls[method.Name]++
		f.mu.Unlock()
		return f.handle(to, method.Name, args)
	}
	f.t.Fatalf("unknown selector %x", data[:4])
	return nil, nil
}

func (f *fakeChain) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// pack ABI-encodes values as the given solidity types.
func pack(t *testing.T, types []string, values ...any) []byte {
	t.Helper()
	args := make(abi.Arguments, len(types))
	for i, typ := range types {
		ty, err := abi.NewType(typ, "", nil)
		require.NoError(t, err)
		args[i] = abi.Argument{Type: ty}
	}
	out, err := args.Pack(values...)
	require.NoError(t, err)
	return out
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), asset.Pow10(18))
}

func mustToken(t *testing.T, addr common.Address, decimals int) domain.Token {
	t.Helper()
	tok, err := domain.NewToken(asset.ChainEthereum, addr.Hex(), decimals)
	require.NoError(t, err)
	return tok
}

func TestV2Adapter_DiscoverAndRatio(t *testing.T) {
	chain := newFakeChain(t, func(to common.Address, method string, args []any) ([]byte, error) {
		switch method {
		case "getPair":
			if args[1].(common.Address) == asset.WETH.Address() {
				return pack(t, []string{"address"}, pairAddr), nil
			}
			return pack(t, []string{"address"}, common.Address{}), nil
		case "getReserves":
			assert.Equal(t, pairAddr, to)
			return pack(t, []string{"uint112", "uint112", "uint32"}, e18(1_000_000), e18(10), uint32(0)), nil
		}
		return nil, nil
	})
	a := NewV2Adapter(domain.DexUniswapV2, chain, factory, nil, &mockLogger{})
	tok := mustToken(t, uni, 18)

	found, err := a.Discover(context.Background(), tok, []*asset.Asset{asset.WETH, asset.USDC})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, pairAddr.Hex(), found[0].Descriptor.VenueID)
	assert.Equal(t, domain.QuoteNative, found[0].Descriptor.QuoteClass)
	assert.True(t, found[0].QuoteLiquidity.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, chain.count("getPair"), "stops at the first quote with a pair")

	ratio, err := a.Ratio(context.Background(), tok, found[0].Descriptor)
	require.NoError(t, err)
	assert.Zero(t, ratio.Cmp(big.NewRat(1, 100_000)), ratio.String())
}

func TestV2Adapter_FallsBackToNextQuote(t *testing.T) {
	chain := newFakeChain(t, func(to common.Address, method string, args []any) ([]byte, error) {
		switch method {
		case "getPair":
			if args[1].(common.Address) == asset.USDC.Address() {
				return pack(t, []string{"address"}, pairAddr), nil
			}
			return pack(t, []string{"address"}, common.Address{}), nil
		case "getReserves":
			// UNI is token0, USDC token1.
			return pack(t, []string{"uint112", "uint112", "uint32"}, e18(100), big.NewInt(750_000_000), uint32(0)), nil
		}
		return nil, nil
	})
	a := NewV2Adapter(domain.DexUniswapV2, chain, factory, nil, &mockLogger{})
	tok := mustToken(t, uni, 18)

	found, err := a.Discover(context.Background(), tok, []*asset.Asset{asset.WETH, asset.USDC})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, domain.QuoteStable, found[0].Descriptor.QuoteClass)
	assert.True(t, found[0].QuoteLiquidity.Equal(decimal.NewFromInt(750)))

	ratio, err := a.Ratio(context.Background(), tok, found[0].Descriptor)
	require.NoError(t, err)
	assert.Zero(t, ratio.Cmp(big.NewRat(15, 2)), ratio.String())
}

func TestV2Adapter_UnknownDecimals(t *testing.T) {
	a := NewV2Adapter(domain.DexUniswapV2, newFakeChain(t, nil), factory, nil, &mockLogger{})
	tok := mustToken(t, uni, -1)
	pool := a.descriptor(tok, asset.WETH, pairAddr.Hex())

	_, err := a.Ratio(context.Background(), tok, pool)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeDecodeFailed, apperror.GetCode(err))
}

func TestV2Adapter_EmptyReturnIsDecodeError(t *testing.T) {
	chain := newFakeChain(t, func(common.Address, string, []any) ([]byte, error) {
		return nil, nil
	})
	a := NewV2Adapter(domain.DexUniswapV2, chain, factory, nil, &mockLogger{})

	_, err := a.Discover(context.Background(), mustToken(t, uni, 18), []*asset.Asset{asset.WETH})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeDecodeFailed, apperror.GetCode(err))
}

func slot0Words(sqrtPrice *big.Int, tick int64) []byte {
	out := make([]byte, 7*32)
	copy(out[:32], math.U256Bytes(new(big.Int).Set(sqrtPrice)))
	copy(out[32:64], math.U256Bytes(big.NewInt(tick)))
	return out
}

func TestDecodeSlot0(t *testing.T) {
	sqrt := new(big.Int).Lsh(big.NewInt(1), 96)

	p, tick, err := decodeSlot0(slot0Words(sqrt, -887272))
	require.NoError(t, err)
	assert.Equal(t, 0, p.Cmp(sqrt))
	assert.Equal(t, int32(-887272), tick)

	_, tick, err = decodeSlot0(slot0Words(sqrt, 201000))
	require.NoError(t, err)
	assert.Equal(t, int32(201000), tick)

	_, _, err = decodeSlot0(make([]byte, 40))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeDecodeFailed, apperror.GetCode(err))
}

func TestV3Adapter_DiscoverAndRatio(t *testing.T) {
	pool3000 := common.HexToAddress("0x919Fa96e88d67499339577Fa202345436bcDaf79")
	// CRV is token1: the pool price is CRV per WETH.
	sqrt := domain.RatioToSqrtPriceX96(big.NewRat(5000, 1))

	chain := newFakeChain(t, func(to common.Address, method string, args []any) ([]byte, error) {
		switch method {
		case "getPool":
			if args[1].(common.Address) == asset.WETH.Address() && args[2].(*big.Int).Int64() == FeeTier030 {
				return pack(t, []string{"address"}, pool3000), nil
			}
			return pack(t, []string{"address"}, common.Address{}), nil
		case "balanceOf":
			assert.Equal(t, asset.WETH.Address(), to)
			assert.Equal(t, pool3000, args[0].(common.Address))
			return pack(t, []string{"uint256"}, e18(42)), nil
		case "slot0":
			return slot0Words(sqrt, 85176), nil
		}
		return nil, nil
	})
	a := NewV3Adapter(domain.DexUniswapV3, chain, factory,
		[]uint32{FeeTier001, FeeTier005, FeeTier030, FeeTier100}, nil, &mockLogger{})
	tok := mustToken(t, crv, 18)

	found, err := a.Discover(context.Background(), tok, []*asset.Asset{asset.WETH, asset.USDC})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, uint32(FeeTier030), found[0].Descriptor.FeeTier)
	assert.True(t, found[0].QuoteLiquidity.Equal(decimal.NewFromInt(42)))
	assert.Equal(t, 4, chain.count("getPool"))

	ratio, err := a.Ratio(context.Background(), tok, found[0].Descriptor)
	require.NoError(t, err)
	got, _ := ratio.Float64()
	assert.InDelta(t, 0.0002, got, 1e-12)
}

func TestV3Adapter_ScalesByDecimals(t *testing.T) {
	// USDC (6) is token0 and WETH (18) token1; a raw ratio of 1 means one
	// USDC unit buys one wei, so USDC is worth 10^-12 WETH and WETH 10^12 USDC.
	chain := newFakeChain(t, func(_ common.Address, method string, _ []any) ([]byte, error) {
		return slot0Words(new(big.Int).Lsh(big.NewInt(1), 96), 0), nil
	})
	a := NewV3Adapter(domain.DexUniswapV3, chain, factory, nil, nil, &mockLogger{})
	weth := mustToken(t, asset.WETH.Address(), 18)
	pool := a.descriptor(weth, asset.USDC, pairAddr.Hex())

	ratio, err := a.Ratio(context.Background(), weth, pool)
	require.NoError(t, err)
	assert.Zero(t, ratio.Cmp(new(big.Rat).SetInt(asset.Pow10(12))), ratio.String())
}

func TestV4Adapter_DiscoverNativeAndRatio(t *testing.T) {
	wantID, err := domain.V4PoolID(uni, domain.NativeCurrency, FeeTier030, 60, common.Address{})
	require.NoError(t, err)

	// Native is currency0: the price is UNI per ETH.
	sqrt := domain.RatioToSqrtPriceX96(big.NewRat(400, 1))
	liquidity := e18(1000)

	chain := newFakeChain(t, func(to common.Address, method string, args []any) ([]byte, error) {
		assert.Equal(t, stateView, to)
		id := common.Hash(args[0].([32]byte))
		switch method {
		case "getLiquidity":
			if id == wantID {
				return pack(t, []string{"uint128"}, liquidity), nil
			}
			return pack(t, []string{"uint128"}, big.NewInt(0)), nil
		case "getSlot0":
			require.Equal(t, wantID, id)
			return pack(t, []string{"uint160", "int24", "uint24", "uint24"}, sqrt, big.NewInt(59914), big.NewInt(0), big.NewInt(3000)), nil
		}
		return nil, nil
	})
	a := NewV4Adapter(chain, stateView, nil, nil, &mockLogger{})
	tok := mustToken(t, uni, 18)

	found, err := a.Discover(context.Background(), tok, []*asset.Asset{asset.WETH, asset.USDC})
	require.NoError(t, err)
	require.Len(t, found, 1)
	d := found[0].Descriptor
	assert.Equal(t, wantID.Hex(), d.VenueID)
	assert.Equal(t, asset.WETH.Identifier(), d.QuoteAsset)
	assert.Equal(t, int32(60), d.TickSpacing)
	assert.Equal(t, 4, chain.count("getLiquidity"))

	// Quote side is currency0, L / sqrtP = 1000 / 20 = 50 ETH.
	assert.InDelta(t, 50.0, found[0].QuoteLiquidity.InexactFloat64(), 1e-9)

	ratio, err := a.Ratio(context.Background(), tok, d)
	require.NoError(t, err)
	got, _ := ratio.Float64()
	assert.InDelta(t, 0.0025, got, 1e-12)
}

func TestTokenInfo_CachesDecimals(t *testing.T) {
	chain := newFakeChain(t, func(_ common.Address, method string, _ []any) ([]byte, error) {
		return pack(t, []string{"uint8"}, uint8(6)), nil
	})
	info := NewTokenInfo([]EVMReader{chain}, &mockLogger{})
	t.Cleanup(info.Close)

	for range 3 {
		d, err := info.Decimals(context.Background(), asset.ChainEthereum, asset.AddrUSDCEthereum)
		require.NoError(t, err)
		assert.Equal(t, uint8(6), d)
	}
	assert.Equal(t, 1, chain.count("decimals"))

	_, err := info.Decimals(context.Background(), asset.ChainBSC, asset.AddrUSDCBSC)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeUnsupportedChain, apperror.GetCode(err))
}
