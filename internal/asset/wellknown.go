package asset

// Well-known token identifiers
const (
	// Ethereum
	AddrWETHEthereum        = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	AddrUSDCEthereum        = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	AddrUSDTEthereum        = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	AddrBNBEthereum         = "0xB8c77482e45F1F44dE1745F52C74426C631bDD52"
	AddrWormholeSOLEthereum = "0xD31a59c85aE9D8edEFeC411D448f90841571b89c"

	// BSC
	AddrWBNBBSC = "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"
	AddrUSDTBSC = "0x55d398326f99059fF775485246999027B3197955"
	AddrUSDCBSC = "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d"
	AddrETHBSC  = "0x2170Ed0880ac9A755fd29B2688956BD959F933F8"

	// Solana
	MintWSOL = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// Native EVM currency (Uniswap V4 encodes it as the zero address).
const AddrNativeEVM = "0x0000000000000000000000000000000000000000"

// Well-known Assets (pre-created instances)
var (
	// Ethereum
	WETH        = NewAssetWithName(MustAssetID(ChainEthereum, AddrWETHEthereum), "WETH", "Wrapped Ether", 18, ClassNative)
	USDC        = NewAssetWithName(MustAssetID(ChainEthereum, AddrUSDCEthereum), "USDC", "USD Coin", 6, ClassStable)
	USDT        = NewAssetWithName(MustAssetID(ChainEthereum, AddrUSDTEthereum), "USDT", "Tether USD", 6, ClassStable)
	BNBEthereum = NewAssetWithName(MustAssetID(ChainEthereum, AddrBNBEthereum), "BNB", "BNB", 18, ClassToken)
	SOLEthereum = NewAssetWithName(MustAssetID(ChainEthereum, AddrWormholeSOLEthereum), "SOL", "SOL (Wormhole)", 9, ClassToken)

	// BSC
	WBNB    = NewAssetWithName(MustAssetID(ChainBSC, AddrWBNBBSC), "WBNB", "Wrapped BNB", 18, ClassNative)
	USDTBSC = NewAssetWithName(MustAssetID(ChainBSC, AddrUSDTBSC), "USDT", "Tether USD", 18, ClassStable)
	USDCBSC = NewAssetWithName(MustAssetID(ChainBSC, AddrUSDCBSC), "USDC", "USD Coin", 18, ClassStable)
	ETHBSC  = NewAssetWithName(MustAssetID(ChainBSC, AddrETHBSC), "ETH", "Binance-Peg Ethereum", 18, ClassToken)

	// Solana
	WSOL       = NewAssetWithName(MustAssetID(ChainSolana, MintWSOL), "WSOL", "Wrapped SOL", 9, ClassNative)
	USDCSolana = NewAssetWithName(MustAssetID(ChainSolana, MintUSDC), "USDC", "USD Coin", 6, ClassStable)
	USDTSolana = NewAssetWithName(MustAssetID(ChainSolana, MintUSDT), "USDT", "Tether USD", 6, ClassStable)
)

// DefaultRegistry returns a registry pre-populated with well-known assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// Ethereum
	r.Register(WETH)
	r.Register(USDC)
	r.Register(USDT)
	r.Register(BNBEthereum)
	r.Register(SOLEthereum)

	// BSC
	r.Register(WBNB)
	r.Register(USDTBSC)
	r.Register(USDCBSC)
	r.Register(ETHBSC)

	// Solana
	r.Register(WSOL)
	r.Register(USDCSolana)
	r.Register(USDTSolana)

	return r
}
