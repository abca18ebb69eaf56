package app

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
)

// VenueSet holds the venue adapters of every chain in preference order and
// the quote assets each chain accepts.
type VenueSet struct {
	registry *asset.Registry
	adapters map[asset.Chain][]VenueAdapter
	quotes   map[asset.Chain][]*asset.Asset
}

// NewVenueSet registers adapters in preference order, most preferred first.
// stables lists the accepted stable quote symbols per chain, in order; a
// chain missing from the map accepts every registered stable.
func NewVenueSet(registry *asset.Registry, stables map[asset.Chain][]string, adapters ...VenueAdapter) (*VenueSet, error) {
	v := &VenueSet{
		registry: registry,
		adapters: make(map[asset.Chain][]VenueAdapter),
		quotes:   make(map[asset.Chain][]*asset.Asset),
	}

	for _, a := range adapters {
		v.adapters[a.Chain()] = append(v.adapters[a.Chain()], a)
	}

	for chain := range v.adapters {
		native, ok := registry.Native(chain)
		if !ok {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext("no native asset registered for "+string(chain)))
		}
		quotes := []*asset.Asset{native}

		symbols, ok := stables[chain]
		if !ok {
			quotes = append(quotes, registry.Stables(chain)...)
		}
		for _, sym := range symbols {
			a, found := registry.GetBySymbolAndChain(sym, chain)
			if !found || !a.IsStable() {
				return nil, apperror.New(apperror.CodeConfigurationError,
					apperror.WithContext(fmt.Sprintf("%s is not a stable asset on %s", sym, chain)))
			}
			quotes = append(quotes, a)
		}
		v.quotes[chain] = quotes
	}

	return v, nil
}

// Adapters returns the adapters of chain in preference order.
func (v *VenueSet) Adapters(chain asset.Chain) []VenueAdapter {
	return v.adapters[chain]
}

// Chains returns the chains that have at least one adapter.
func (v *VenueSet) Chains() []asset.Chain {
	var chains []asset.Chain
	for _, c := range asset.SupportedChains() {
		if len(v.adapters[c]) > 0 {
			chains = append(chains, c)
		}
	}
	return chains
}

// Quotes returns the quote assets for pricing token, native first, never
// the token itself.
func (v *VenueSet) Quotes(token domain.Token, stableOnly bool) []*asset.Asset {
	var out []*asset.Asset
	for _, q := range v.quotes[token.Chain] {
		if stableOnly && !q.IsStable() {
			continue
		}
		if strings.EqualFold(q.Identifier(), token.Identifier) {
			continue
		}
		out = append(out, q)
	}
	return out
}

// Ratio decodes pool with the adapter that owns it.
func (v *VenueSet) Ratio(ctx context.Context, token domain.Token, pool domain.PoolDescriptor) (*big.Rat, error) {
	if err := pool.Validate(); err != nil {
		return nil, domain.ErrDecode("invalid descriptor", err)
	}
	if pool.Chain != token.Chain || !strings.EqualFold(pool.TokenIdentifier, token.Identifier) {
		return nil, domain.ErrDecode(fmt.Sprintf("descriptor %s does not price %s", pool.Key(), token.ID()), nil)
	}

	for _, a := range v.adapters[pool.Chain] {
		if a.Dex() == pool.Dex {
			return a.Ratio(ctx, token, pool)
		}
	}
	return nil, apperror.New(apperror.CodeUnsupportedChain,
		apperror.WithContext(fmt.Sprintf("no %s adapter on %s", pool.Dex, pool.Chain)))
}
