package asset_test

import (
	"math/big"
	"testing"

	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/shopspring/decimal"
)

func TestAmount_Basic(t *testing.T) {
	// 1 ETH = 1e18 wei
	oneETH := asset.NewAmount(big.NewInt(1e18), 18)

	if oneETH.IsZero() {
		t.Error("expected non-zero amount")
	}

	// ToDecimal should return 1.0
	d := oneETH.ToDecimal()
	if !d.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected 1, got %s", d.String())
	}

	if oneETH.Rat().Cmp(big.NewRat(1, 1)) != 0 {
		t.Errorf("expected rat 1, got %s", oneETH.Rat().String())
	}
}

func TestAmount_RawIsCopied(t *testing.T) {
	raw := big.NewInt(42)
	a := asset.NewAmount(raw, 0)
	raw.SetInt64(7)

	if a.Raw().Int64() != 42 {
		t.Errorf("expected 42, got %s", a.Raw().String())
	}
}

func TestParseUnits(t *testing.T) {
	amount, err := asset.ParseUnits("1.5", 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should be 1.5e18 wei
	expected, _ := new(big.Int).SetString("1500000000000000000", 10)
	if amount.Raw().Cmp(expected) != 0 {
		t.Errorf("expected %s, got %s", expected.String(), amount.Raw().String())
	}
	if amount.String() != "1.5" {
		t.Errorf("expected 1.5, got %s", amount.String())
	}
}

func TestParseUnits_TooManyDecimals(t *testing.T) {
	// USDC has 6 decimals, try to parse 1.1234567 (7 decimals)
	_, err := asset.ParseUnits("1.1234567", 6)
	if err == nil {
		t.Error("expected error for too many decimals")
	}
}

func TestParseUnits_Negative(t *testing.T) {
	if _, err := asset.ParseUnits("-1", 6); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestPow10(t *testing.T) {
	if asset.Pow10(0).Int64() != 1 {
		t.Error("10^0 should be 1")
	}
	if asset.Pow10(6).Int64() != 1_000_000 {
		t.Errorf("10^6 mismatch: %s", asset.Pow10(6).String())
	}
	// cached value is reused
	if asset.Pow10(18) != asset.Pow10(18) {
		t.Error("expected cached pointer")
	}
}

func TestAssetID_Canonical(t *testing.T) {
	lower := "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	id, err := asset.NewAssetID(asset.ChainEthereum, lower)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !id.Equals(asset.USDC.ID()) {
		t.Errorf("expected checksummed identity, got %s", id)
	}
	if id.String() != "ethereum:"+asset.AddrUSDCEthereum {
		t.Errorf("unexpected string form %s", id.String())
	}

	// Same address on different chains has different identity
	bsc, err := asset.NewAssetID(asset.ChainBSC, lower)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Equals(bsc) {
		t.Error("different chains should have different IDs")
	}
}

func TestAssetID_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		chain asset.Chain
		ident string
	}{
		{"evm garbage", asset.ChainEthereum, "not-an-address"},
		{"evm short", asset.ChainBSC, "0x1234"},
		{"solana bad base58", asset.ChainSolana, "0OIl"},
		{"solana wrong length", asset.ChainSolana, "3yZe7d"},
		{"unknown chain", asset.Chain("tron"), asset.AddrUSDCEthereum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := asset.NewAssetID(tt.chain, tt.ident); err == nil {
				t.Errorf("expected error for %q", tt.ident)
			}
		})
	}
}

func TestParseAssetID(t *testing.T) {
	id, err := asset.ParseAssetID("sol:" + asset.MintUSDC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Chain() != asset.ChainSolana || id.Identifier() != asset.MintUSDC {
		t.Errorf("unexpected id %s", id)
	}

	if _, err := asset.ParseAssetID(asset.MintUSDC); err == nil {
		t.Error("expected error without chain prefix")
	}
}

func TestParseChain(t *testing.T) {
	tests := map[string]asset.Chain{
		"eth":                 asset.ChainEthereum,
		"Ethereum":            asset.ChainEthereum,
		"binance-smart-chain": asset.ChainBSC,
		"bnb":                 asset.ChainBSC,
		"SOL":                 asset.ChainSolana,
	}
	for in, want := range tests {
		got, err := asset.ParseChain(in)
		if err != nil {
			t.Fatalf("ParseChain(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseChain(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := asset.ParseChain("tron"); err == nil {
		t.Error("expected error for unsupported chain")
	}
}

func TestRegistry(t *testing.T) {
	r := asset.DefaultRegistry()

	for _, chain := range asset.SupportedChains() {
		native, ok := r.Native(chain)
		if !ok {
			t.Fatalf("no native asset for %s", chain)
		}
		if native.Chain() != chain {
			t.Errorf("native of %s is on %s", chain, native.Chain())
		}
		if len(r.Stables(chain)) != 2 {
			t.Errorf("expected 2 stables on %s, got %d", chain, len(r.Stables(chain)))
		}
	}

	// Should find USDC by symbol and chain
	usdc, ok := r.GetBySymbolAndChain("usdc", asset.ChainEthereum)
	if !ok {
		t.Fatal("USDC not found in registry")
	}
	if usdc.Decimals() != 6 {
		t.Errorf("expected 6 decimals, got %d", usdc.Decimals())
	}

	bscUSDT, ok := r.GetBySymbolAndChain("USDT", asset.ChainBSC)
	if !ok || bscUSDT.Decimals() != 18 {
		t.Error("expected 18-decimal USDT on BSC")
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	r := asset.NewRegistry()
	r.Register(asset.WETH)
	r.Register(asset.WETH)
}
