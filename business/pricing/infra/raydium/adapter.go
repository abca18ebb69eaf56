// Package raydium implements venue adapters for Raydium pools on Solana.
// Both pool types hold their reserves in SPL token vaults, so prices come
// from vault balances rather than from a stored price.
package raydium

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	chain "github.com/fd1az/token-price-engine/business/blockchain/domain"
	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/logger"
)

const tracerName = "github.com/fd1az/token-price-engine/business/pricing/infra/raydium"

// SolanaReader is the account access the adapters need.
type SolanaReader interface {
	GetAccountInfo(ctx context.Context, account chain.PublicKey) (*chain.AccountInfo, error)
	GetTokenBalances(ctx context.Context, accounts []chain.PublicKey) ([]chain.TokenBalance, error)
	GetProgramAccounts(ctx context.Context, program chain.PublicKey, filters ...chain.AccountFilter) ([]chain.ProgramAccount, error)
}

// venue holds what both adapters share.
type venue struct {
	dex      domain.Dex
	program  chain.PublicKey
	reader   SolanaReader
	registry *asset.Registry
	logger   logger.LoggerInterface
	tracer   trace.Tracer
}

func newVenue(dex domain.Dex, program chain.PublicKey, reader SolanaReader, registry *asset.Registry, log logger.LoggerInterface) venue {
	if registry == nil {
		registry = asset.DefaultRegistry()
	}
	return venue{
		dex:      dex,
		program:  program,
		reader:   reader,
		registry: registry,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
}

func (v venue) Dex() domain.Dex    { return v.dex }
func (v venue) Chain() asset.Chain { return asset.ChainSolana }

func (v venue) startSpan(ctx context.Context, op string, token domain.Token) (context.Context, trace.Span) {
	return v.tracer.Start(ctx, string(v.dex)+"."+op,
		trace.WithAttributes(attribute.String("mint", token.Identifier)),
	)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// found is a decoded pool whose vault balances are still to be read.
type found struct {
	address chain.PublicKey
	state   poolState
	quote   *asset.Asset
}

// candidates reads the vault balances of pools in one batch and turns them
// into candidates priced against the quote side.
func (v venue) candidates(ctx context.Context, token domain.Token, mint chain.PublicKey, pools []found) ([]domain.Candidate, error) {
	if len(pools) == 0 {
		return nil, nil
	}

	vaults := make([]chain.PublicKey, 0, len(pools))
	for _, p := range pools {
		_, quoteVault, _ := p.state.side(mint)
		vaults = append(vaults, quoteVault)
	}
	balances, err := v.balances(ctx, vaults)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(pools))
	for i, p := range pools {
		liquidity, err := uiAmount(balances[i])
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Candidate{
			Descriptor:     v.descriptor(token, p.quote, p.address),
			QuoteLiquidity: liquidity,
		})
	}
	return out, nil
}

// ratio prices mint from the vault balances of state.
func (v venue) ratio(ctx context.Context, mint chain.PublicKey, state poolState) (*big.Rat, error) {
	baseVault, quoteVault, ok := state.side(mint)
	if !ok {
		return nil, domain.ErrDecode("pool does not hold "+mint.String(), nil)
	}

	balances, err := v.balances(ctx, []chain.PublicKey{baseVault, quoteVault})
	if err != nil {
		return nil, err
	}
	base, err := uiAmount(balances[0])
	if err != nil {
		return nil, err
	}
	quote, err := uiAmount(balances[1])
	if err != nil {
		return nil, err
	}
	return domain.VaultRatio(domain.VaultSnapshot{BaseBalance: base, QuoteBalance: quote})
}

func (v venue) balances(ctx context.Context, vaults []chain.PublicKey) ([]chain.TokenBalance, error) {
	balances, err := v.reader.GetTokenBalances(ctx, vaults)
	if err != nil {
		return nil, err
	}
	if len(balances) != len(vaults) {
		return nil, domain.ErrDecode(fmt.Sprintf("got %d vault balances, want %d", len(balances), len(vaults)), nil)
	}
	return balances, nil
}

func (v venue) descriptor(token domain.Token, quote *asset.Asset, pool chain.PublicKey) domain.PoolDescriptor {
	class, _ := domain.ClassOf(quote)
	return domain.PoolDescriptor{
		Chain:           asset.ChainSolana,
		Protocol:        v.dex.Protocol(),
		Dex:             v.dex,
		VenueID:         pool.String(),
		TokenIdentifier: token.Identifier,
		QuoteAsset:      quote.Identifier(),
		QuoteClass:      class,
		PairSymbol:      shortKey(token.Identifier) + "/" + quote.Symbol(),
	}
}

// account loads a pool account, checking its owner.
func (v venue) account(ctx context.Context, pool chain.PublicKey) (*chain.AccountInfo, error) {
	info, err := v.reader.GetAccountInfo(ctx, pool)
	if err != nil {
		return nil, err
	}
	if info.Owner != v.program {
		return nil, domain.ErrDecode(fmt.Sprintf("%s is owned by %s", pool, info.Owner), nil)
	}
	return info, nil
}

// mintOf parses a Solana identifier.
func mintOf(identifier string) (chain.PublicKey, error) {
	pk, err := chain.ParsePublicKey(identifier)
	if err != nil {
		return chain.PublicKey{}, apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err))
	}
	return pk, nil
}

// poolKeys parses a descriptor's pool and token.
func poolKeys(token domain.Token, pool domain.PoolDescriptor) (address, mint chain.PublicKey, err error) {
	if address, err = mintOf(pool.VenueID); err != nil {
		return
	}
	mint, err = mintOf(token.Identifier)
	return
}

func uiAmount(b chain.TokenBalance) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(b.UIAmount)
	if err != nil {
		return decimal.Zero, domain.ErrDecode("token balance of "+b.Account.String(), err)
	}
	return d, nil
}

func shortKey(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:4] + "…" + s[len(s)-4:]
}
