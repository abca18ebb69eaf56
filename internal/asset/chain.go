package asset

import (
	"fmt"
	"strings"
)

// Chain names one of the supported blockchains.
type Chain string

// Supported chains
const (
	ChainEthereum Chain = "ethereum"
	ChainBSC      Chain = "bsc"
	ChainSolana   Chain = "solana"
)

// EVM chain IDs
const (
	ChainIDEthereum = 1
	ChainIDBSC      = 56
)

// SupportedChains returns every chain the engine can price on, in display order.
func SupportedChains() []Chain {
	return []Chain{ChainEthereum, ChainBSC, ChainSolana}
}

// ParseChain accepts the canonical name and the common aliases used by
// aggregators and explorers.
func ParseChain(s string) (Chain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ethereum", "eth", "mainnet":
		return ChainEthereum, nil
	case "bsc", "bnb", "binance-smart-chain", "binance":
		return ChainBSC, nil
	case "solana", "sol":
		return ChainSolana, nil
	default:
		return "", fmt.Errorf("asset: unsupported chain %q", s)
	}
}

// IsEVM returns true for chains accessed through EVM JSON-RPC.
func (c Chain) IsEVM() bool {
	return c == ChainEthereum || c == ChainBSC
}

// EVMChainID returns the EIP-155 chain ID (0 for non-EVM chains).
func (c Chain) EVMChainID() uint64 {
	switch c {
	case ChainEthereum:
		return ChainIDEthereum
	case ChainBSC:
		return ChainIDBSC
	default:
		return 0
	}
}

// ReferenceSymbol returns the symbol of the chain's reference asset, the
// unit native-quoted venues are priced in.
func (c Chain) ReferenceSymbol() string {
	switch c {
	case ChainEthereum:
		return "ETH"
	case ChainBSC:
		return "BNB"
	case ChainSolana:
		return "SOL"
	default:
		return ""
	}
}

// String returns the canonical chain name.
func (c Chain) String() string {
	return string(c)
}
