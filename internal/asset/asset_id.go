// Package asset provides a chain-aware model for tokens and their quantities.
// On-chain quantities are kept as big.Int; decimal.Decimal and big.Rat are
// used only once a quantity has been normalized by its decimals.
package asset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// ErrInvalidIdentifier is returned when a token identifier is malformed for its chain.
var ErrInvalidIdentifier = errors.New("asset: invalid identifier")

// AssetID uniquely identifies a token by chain and on-chain identifier.
// EVM identifiers are checksummed contract addresses (the zero address is
// the native coin); Solana identifiers are base58 mint addresses.
type AssetID struct {
	chain      Chain
	identifier string
}

// NewAssetID validates identifier for chain and returns its canonical form.
func NewAssetID(chain Chain, identifier string) (AssetID, error) {
	identifier = strings.TrimSpace(identifier)
	switch {
	case chain.IsEVM():
		if !common.IsHexAddress(identifier) {
			return AssetID{}, fmt.Errorf("%w: %q is not an address on %s", ErrInvalidIdentifier, identifier, chain)
		}
		return AssetID{chain: chain, identifier: common.HexToAddress(identifier).Hex()}, nil
	case chain == ChainSolana:
		raw, err := base58.Decode(identifier)
		if err != nil || len(raw) != 32 {
			return AssetID{}, fmt.Errorf("%w: %q is not a mint address", ErrInvalidIdentifier, identifier)
		}
		return AssetID{chain: chain, identifier: identifier}, nil
	default:
		return AssetID{}, fmt.Errorf("asset: unsupported chain %q", chain)
	}
}

// MustAssetID is NewAssetID for compile-time constants; it panics on error.
func MustAssetID(chain Chain, identifier string) AssetID {
	id, err := NewAssetID(chain, identifier)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseAssetID parses the "chain:identifier" form produced by String.
func ParseAssetID(s string) (AssetID, error) {
	chainPart, ident, ok := strings.Cut(s, ":")
	if !ok {
		return AssetID{}, fmt.Errorf("%w: %q, expected chain:identifier", ErrInvalidIdentifier, s)
	}
	chain, err := ParseChain(chainPart)
	if err != nil {
		return AssetID{}, err
	}
	return NewAssetID(chain, ident)
}

// Chain returns the chain the asset lives on.
func (id AssetID) Chain() Chain {
	return id.chain
}

// Identifier returns the canonical on-chain identifier.
func (id AssetID) Identifier() string {
	return id.identifier
}

// Address returns the EVM address (zero for Solana assets).
func (id AssetID) Address() common.Address {
	if !id.chain.IsEVM() {
		return common.Address{}
	}
	return common.HexToAddress(id.identifier)
}

// IsZero returns true for the zero value.
func (id AssetID) IsZero() bool {
	return id.chain == "" && id.identifier == ""
}

// String returns the canonical "chain:identifier" form.
func (id AssetID) String() string {
	return fmt.Sprintf("%s:%s", id.chain, id.identifier)
}

// Equals compares two AssetIDs for equality.
func (id AssetID) Equals(other AssetID) bool {
	return id.chain == other.chain && id.identifier == other.identifier
}
