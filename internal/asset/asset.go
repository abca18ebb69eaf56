package asset

import "github.com/ethereum/go-ethereum/common"

// Class tells the engine how an asset can serve as a quote.
type Class int

const (
	// ClassToken is an ordinary token with no quoting role.
	ClassToken Class = iota
	// ClassNative is the chain's wrapped reference asset.
	ClassNative
	// ClassStable is a USD-pegged stable asset.
	ClassStable
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassNative:
		return "native"
	case ClassStable:
		return "stable"
	default:
		return "token"
	}
}

// Asset represents the metadata of a token.
// It is a reference entity with stable identity (AssetID).
// The symbol is NOT identity - just metadata for display.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
	class    Class
}

// NewAsset creates a new Asset with the given parameters.
func NewAsset(id AssetID, symbol string, decimals uint8, class Class) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}

	return &Asset{
		id:       id,
		symbol:   symbol,
		decimals: decimals,
		class:    class,
	}
}

// NewAssetWithName creates a new Asset with a human-readable name.
func NewAssetWithName(id AssetID, symbol, name string, decimals uint8, class Class) *Asset {
	a := NewAsset(id, symbol, decimals, class)
	a.name = name
	return a
}

// ID returns the unique identifier for this asset.
func (a *Asset) ID() AssetID {
	return a.id
}

// Chain returns the chain the asset lives on.
func (a *Asset) Chain() Chain {
	return a.id.Chain()
}

// Identifier returns the canonical on-chain identifier.
func (a *Asset) Identifier() string {
	return a.id.Identifier()
}

// Address returns the EVM contract address (zero on Solana).
func (a *Asset) Address() common.Address {
	return a.id.Address()
}

// Symbol returns the ticker symbol (e.g., "WETH", "USDC").
func (a *Asset) Symbol() string {
	return a.symbol
}

// Name returns the human-readable name (e.g., "Wrapped Ether", "USD Coin").
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

// Decimals returns the number of decimal places.
func (a *Asset) Decimals() uint8 {
	return a.decimals
}

// Class returns the quoting role of the asset.
func (a *Asset) Class() Class {
	return a.class
}

// IsNative returns true for the chain's wrapped reference asset.
func (a *Asset) IsNative() bool {
	return a.class == ClassNative
}

// IsStable returns true for USD-pegged assets.
func (a *Asset) IsStable() bool {
	return a.class == ClassStable
}

// String returns a human-readable representation.
func (a *Asset) String() string {
	return a.symbol
}

// Equals compares two Assets by their ID.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id.Equals(other.id)
}
