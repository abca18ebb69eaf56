package raydium

import (
	"context"
	"math/big"

	"go.opentelemetry.io/otel/attribute"

	chain "github.com/fd1az/token-price-engine/business/blockchain/domain"
	"github.com/fd1az/token-price-engine/business/pricing/app"
	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/logger"
)

var _ app.VenueAdapter = (*CPMMAdapter)(nil)

var poolSeed = []byte("pool")

// CPMMAdapter reads Raydium CPMM pools. A pool address is a program address
// derived from its config and sorted mints, so discovery needs no scan.
type CPMMAdapter struct {
	venue
	configs []chain.PublicKey
}

// NewCPMMAdapter creates a CPMMAdapter probing every AMM config in configs.
func NewCPMMAdapter(reader SolanaReader, program chain.PublicKey, configs []chain.PublicKey, registry *asset.Registry, log logger.LoggerInterface) *CPMMAdapter {
	return &CPMMAdapter{
		venue:   newVenue(domain.DexRaydiumCPMM, program, reader, registry, log),
		configs: configs,
	}
}

// PoolAddress derives the CPMM pool of two mints under one AMM config.
func PoolAddress(program, ammConfig, a, b chain.PublicKey) (chain.PublicKey, error) {
	if b.Less(a) {
		a, b = b, a
	}
	pk, _, err := chain.FindProgramAddress([][]byte{poolSeed, ammConfig[:], a[:], b[:]}, program)
	return pk, err
}

// Discover derives the pool of token with each quote asset under every
// config and returns the pools of the first quote asset that has any.
func (a *CPMMAdapter) Discover(ctx context.Context, token domain.Token, quotes []*asset.Asset) (_ []domain.Candidate, err error) {
	ctx, span := a.startSpan(ctx, "discover", token)
	defer func() { end(span, err) }()

	mint, err := mintOf(token.Identifier)
	if err != nil {
		return nil, err
	}

	for _, quote := range quotes {
		quoteMint, err := mintOf(quote.Identifier())
		if err != nil {
			return nil, err
		}

		var pools []found
		for _, cfg := range a.configs {
			address, err := PoolAddress(a.program, cfg, mint, quoteMint)
			if err != nil {
				return nil, err
			}
			info, err := a.account(ctx, address)
			if apperror.HasCode(err, apperror.CodeNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			state, err := decodeCPMM(info.Data)
			if err != nil {
				return nil, err
			}
			pools = append(pools, found{address: address, state: state, quote: quote})
		}

		if len(pools) > 0 {
			span.SetAttributes(attribute.Int("pools", len(pools)), attribute.String("quote", quote.Symbol()))
			return a.candidates(ctx, token, mint, pools)
		}
	}
	return nil, nil
}

// Ratio reads the pool's vault balances and prices token in the quote asset.
func (a *CPMMAdapter) Ratio(ctx context.Context, token domain.Token, pool domain.PoolDescriptor) (_ *big.Rat, err error) {
	ctx, span := a.startSpan(ctx, "ratio", token)
	defer func() { end(span, err) }()

	address, mint, err := poolKeys(token, pool)
	if err != nil {
		return nil, err
	}
	info, err := a.account(ctx, address)
	if err != nil {
		return nil, err
	}
	state, err := decodeCPMM(info.Data)
	if err != nil {
		return nil, err
	}
	return a.ratio(ctx, mint, state)
}
