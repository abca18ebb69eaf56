package app

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
)

// ETH home venue defaults: Uniswap V3 USDC/WETH 0.05%.
const (
	DefaultETHHomePool = "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"

	ethHomeFee         = 500
	ethHomeTickSpacing = 10
)

// DefaultReferencePlans returns the venues used to price ETH, BNB and SOL.
// ethHomePool pins the ETH home venue; empty selects DefaultETHHomePool.
// Venues without a pinned pool are found by stable-only discovery.
func DefaultReferencePlans(ethHomePool string) ([]ReferencePlan, error) {
	if ethHomePool == "" {
		ethHomePool = DefaultETHHomePool
	}
	if !common.IsHexAddress(ethHomePool) {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("eth home pool is not an address: "+ethHomePool))
	}

	home := domain.PoolDescriptor{
		Chain:           asset.ChainEthereum,
		Protocol:        domain.ProtocolConcentrated,
		Dex:             domain.DexUniswapV3,
		VenueID:         common.HexToAddress(ethHomePool).Hex(),
		TokenIdentifier: asset.WETH.Identifier(),
		QuoteAsset:      asset.USDC.Identifier(),
		QuoteClass:      domain.QuoteStable,
		PairSymbol:      asset.WETH.Symbol() + "/" + asset.USDC.Symbol(),
		FeeTier:         ethHomeFee,
		TickSpacing:     ethHomeTickSpacing,
	}

	tokens := make(map[*asset.Asset]domain.Token)
	for _, a := range []*asset.Asset{
		asset.WETH, asset.ETHBSC,
		asset.WBNB, asset.BNBEthereum,
		asset.WSOL, asset.SOLEthereum,
	} {
		tok, err := domain.NewToken(a.Chain(), a.Identifier(), int(a.Decimals()))
		if err != nil {
			return nil, err
		}
		tokens[a] = tok
	}

	return []ReferencePlan{
		{
			Symbol:    asset.ChainEthereum.ReferenceSymbol(),
			Home:      VenueRef{Token: tokens[asset.WETH], Pool: &home},
			Secondary: []VenueRef{{Token: tokens[asset.ETHBSC]}},
		},
		{
			Symbol:    asset.ChainBSC.ReferenceSymbol(),
			Home:      VenueRef{Token: tokens[asset.WBNB]},
			Secondary: []VenueRef{{Token: tokens[asset.BNBEthereum]}},
		},
		{
			Symbol:    asset.ChainSolana.ReferenceSymbol(),
			Home:      VenueRef{Token: tokens[asset.WSOL]},
			Secondary: []VenueRef{{Token: tokens[asset.SOLEthereum]}},
		},
	}, nil
}

// StablesBySymbol builds the per-chain stable quote lists for NewVenueSet,
// dropping chains with an empty list so they accept every registered stable.
func StablesBySymbol(ethereum, bsc, solana []string) map[asset.Chain][]string {
	out := make(map[asset.Chain][]string)
	for chain, symbols := range map[asset.Chain][]string{
		asset.ChainEthereum: ethereum,
		asset.ChainBSC:      bsc,
		asset.ChainSolana:   solana,
	} {
		var list []string
		for _, s := range symbols {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				list = append(list, s)
			}
		}
		if len(list) > 0 {
			out[chain] = list
		}
	}
	return out
}
