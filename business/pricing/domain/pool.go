// Package domain contains the core domain types for the pricing context.
package domain

import (
	"fmt"
	"time"

	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
)

// Protocol is an AMM protocol family.
type Protocol string

const (
	ProtocolConstantProduct Protocol = "constant-product"
	ProtocolConcentrated    Protocol = "concentrated-liquidity"
	ProtocolVaultBalance    Protocol = "foreign-vault-balance"
)

// Dex is a concrete venue implementation of a protocol family.
type Dex string

const (
	DexUniswapV4    Dex = "uniswap-v4"
	DexUniswapV3    Dex = "uniswap-v3"
	DexUniswapV2    Dex = "uniswap-v2"
	DexPancakeV3    Dex = "pancakeswap-v3"
	DexPancakeV2    Dex = "pancakeswap-v2"
	DexRaydiumCPMM  Dex = "raydium-cpmm"
	DexRaydiumAMMv4 Dex = "raydium-amm-v4"
)

// Protocol returns the protocol family of the venue.
func (d Dex) Protocol() Protocol {
	switch d {
	case DexUniswapV4, DexUniswapV3, DexPancakeV3:
		return ProtocolConcentrated
	case DexUniswapV2, DexPancakeV2:
		return ProtocolConstantProduct
	case DexRaydiumCPMM, DexRaydiumAMMv4:
		return ProtocolVaultBalance
	default:
		return ""
	}
}

// QuoteAssetClass says how a venue's ratio is converted to USD.
type QuoteAssetClass string

const (
	// QuoteNative ratios are multiplied by the chain's reference asset price.
	QuoteNative QuoteAssetClass = "native"
	// QuoteStable ratios are already USD.
	QuoteStable QuoteAssetClass = "stable"
)

// ClassOf maps an asset onto its quote class. Tokens that are neither native
// nor stable are not valid quote assets.
func ClassOf(a *asset.Asset) (QuoteAssetClass, bool) {
	switch {
	case a.IsNative():
		return QuoteNative, true
	case a.IsStable():
		return QuoteStable, true
	default:
		return "", false
	}
}

// PoolDescriptor identifies the venue selected for a token. It carries enough
// to re-decode the venue with no discovery.
type PoolDescriptor struct {
	Chain    asset.Chain `json:"chain"`
	Protocol Protocol    `json:"protocol"`
	Dex      Dex         `json:"dex"`
	// VenueID is the pool address, the V4 pool id or the Solana pool account.
	VenueID         string          `json:"venue_id"`
	TokenIdentifier string          `json:"token_identifier"`
	QuoteAsset      string          `json:"quote_asset"`
	QuoteClass      QuoteAssetClass `json:"quote_class"`
	PairSymbol      string          `json:"pair_symbol"`
	FeeTier         uint32          `json:"fee_tier,omitempty"`
	TickSpacing     int32           `json:"tick_spacing,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Key returns the venue identity, unique within (chain, protocol).
func (d PoolDescriptor) Key() string {
	return fmt.Sprintf("%s/%s/%s", d.Chain, d.Protocol, d.VenueID)
}

// Validate checks the descriptor is complete enough to decode.
func (d PoolDescriptor) Validate() error {
	switch {
	case d.Chain == "":
		return apperror.Validation(apperror.CodeInvalidInput, "descriptor chain is empty")
	case d.Dex.Protocol() == "":
		return apperror.Validation(apperror.CodeInvalidInput, "unknown dex "+string(d.Dex))
	case d.Protocol != d.Dex.Protocol():
		return apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("dex %s is not %s", d.Dex, d.Protocol))
	case d.VenueID == "" || d.TokenIdentifier == "" || d.QuoteAsset == "":
		return apperror.Validation(apperror.CodeInvalidInput, "descriptor identifiers are empty")
	case d.QuoteClass != QuoteNative && d.QuoteClass != QuoteStable:
		return apperror.Validation(apperror.CodeInvalidInput, "unknown quote class "+string(d.QuoteClass))
	}
	return nil
}

// String returns e.g. "uniswap-v3 UNI/WETH 0.30%".
func (d PoolDescriptor) String() string {
	if d.FeeTier > 0 {
		return fmt.Sprintf("%s %s %.2f%%", d.Dex, d.PairSymbol, float64(d.FeeTier)/10000)
	}
	return fmt.Sprintf("%s %s", d.Dex, d.PairSymbol)
}

// Token is the token being priced.
type Token struct {
	Chain      asset.Chain
	Identifier string
	// Decimals is negative when unknown.
	Decimals int
}

// NewToken canonicalizes the identifier for its chain.
func NewToken(chain asset.Chain, identifier string, decimals int) (Token, error) {
	id, err := asset.NewAssetID(chain, identifier)
	if err != nil {
		return Token{}, apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err))
	}
	if decimals > 255 {
		return Token{}, apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("decimals %d out of range", decimals))
	}
	return Token{Chain: chain, Identifier: id.Identifier(), Decimals: decimals}, nil
}

// DecimalsKnown reports whether Decimals holds a real value.
func (t Token) DecimalsKnown() bool {
	return t.Decimals >= 0
}

// ID returns the canonical "chain:identifier" form.
func (t Token) ID() string {
	return string(t.Chain) + ":" + t.Identifier
}
