package raydium

import (
	"context"
	"math/big"

	"go.opentelemetry.io/otel/attribute"

	chain "github.com/fd1az/token-price-engine/business/blockchain/domain"
	"github.com/fd1az/token-price-engine/business/pricing/app"
	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/logger"
)

var _ app.VenueAdapter = (*AMMv4Adapter)(nil)

// AMMv4Adapter reads Raydium AMM v4 pools. They have no registry, so
// discovery scans the program for accounts holding the token on either side.
type AMMv4Adapter struct {
	venue
}

// NewAMMv4Adapter creates an AMMv4Adapter.
func NewAMMv4Adapter(reader SolanaReader, program chain.PublicKey, registry *asset.Registry, log logger.LoggerInterface) *AMMv4Adapter {
	return &AMMv4Adapter{venue: newVenue(domain.DexRaydiumAMMv4, program, reader, registry, log)}
}

// Discover scans for pools of token against each quote asset, in both
// orientations, and returns the pools of the first quote asset that has any.
func (a *AMMv4Adapter) Discover(ctx context.Context, token domain.Token, quotes []*asset.Asset) (_ []domain.Candidate, err error) {
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
		for _, pair := range [][2]chain.PublicKey{{mint, quoteMint}, {quoteMint, mint}} {
			accounts, err := a.reader.GetProgramAccounts(ctx, a.program,
				chain.DataSizeFilter(AMMv4Size),
				chain.MemcmpFilter(ammv4BaseMint, pair[0]),
				chain.MemcmpFilter(ammv4QuoteMint, pair[1]),
			)
			if err != nil {
				return nil, err
			}
			for _, acc := range accounts {
				state, err := decodeAMMv4(acc.Account.Data)
				if err != nil {
					a.logger.Debug(ctx, "skipping undecodable amm v4 account", "account", acc.Pubkey.String(), "error", err)
					continue
				}
				if state.other(mint) != quoteMint {
					continue
				}
				pools = append(pools, found{address: acc.Pubkey, state: state, quote: quote})
			}
		}

		if len(pools) > 0 {
			span.SetAttributes(attribute.Int("pools", len(pools)), attribute.String("quote", quote.Symbol()))
			return a.candidates(ctx, token, mint, pools)
		}
	}
	return nil, nil
}

// Ratio reads the pool's vault balances and prices token in the quote asset.
func (a *AMMv4Adapter) Ratio(ctx context.Context, token domain.Token, pool domain.PoolDescriptor) (_ *big.Rat, err error) {
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
	state, err := decodeAMMv4(info.Data)
	if err != nil {
		return nil, err
	}
	return a.ratio(ctx, mint, state)
}
