// Package uniswap implements venue adapters for Uniswap-family pools on EVM
// chains. The same adapters serve PancakeSwap on BSC.
package uniswap

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/logger"
)

const tracerName = "github.com/fd1az/token-price-engine/business/pricing/infra/uniswap"

// EVMReader is the chain access the adapters need.
type EVMReader interface {
	Chain() asset.Chain
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// venue holds what every adapter shares.
type venue struct {
	dex      domain.Dex
	reader   EVMReader
	registry *asset.Registry
	logger   logger.LoggerInterface
	tracer   trace.Tracer
}

func newVenue(dex domain.Dex, reader EVMReader, registry *asset.Registry, log logger.LoggerInterface) venue {
	if registry == nil {
		registry = asset.DefaultRegistry()
	}
	return venue{
		dex:      dex,
		reader:   reader,
		registry: registry,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
}

func (v venue) Dex() domain.Dex    { return v.dex }
func (v venue) Chain() asset.Chain { return v.reader.Chain() }

// call packs method, runs it against to and unpacks the result. An empty
// return means there is no contract at to.
func (v venue) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	out, err := v.raw(ctx, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, domain.ErrDecode(fmt.Sprintf("%s at %s", method, to.Hex()), err)
	}
	return values, nil
}

// raw runs method and returns the undecoded output.
func (v venue) raw(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]byte, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("pack "+method), apperror.WithCause(err))
	}
	out, err := v.reader.CallContract(ctx, to, data)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrDecode(fmt.Sprintf("%s at %s returned no data", method, to.Hex()), nil)
	}
	return out, nil
}

// startSpan opens a span tagged with the venue.
func (v venue) startSpan(ctx context.Context, op string, token domain.Token) (context.Context, trace.Span) {
	return v.tracer.Start(ctx, string(v.dex)+"."+op,
		trace.WithAttributes(
			attribute.String("chain", string(token.Chain)),
			attribute.String("token", token.Identifier),
		),
	)
}

// end closes span with the outcome of err.
func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// quoteAsset returns the registry entry of a descriptor's quote asset.
func (v venue) quoteAsset(pool domain.PoolDescriptor) (*asset.Asset, error) {
	id, err := asset.NewAssetID(pool.Chain, pool.QuoteAsset)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err))
	}
	a, ok := v.registry.Get(id)
	if !ok {
		return nil, apperror.NotFound(apperror.CodeNotFound, "quote asset "+id.String())
	}
	return a, nil
}

// descriptor builds the descriptor of a venue pairing token with quote.
func (v venue) descriptor(token domain.Token, quote *asset.Asset, venueID string) domain.PoolDescriptor {
	class, _ := domain.ClassOf(quote)
	return domain.PoolDescriptor{
		Chain:           token.Chain,
		Protocol:        v.dex.Protocol(),
		Dex:             v.dex,
		VenueID:         venueID,
		TokenIdentifier: token.Identifier,
		QuoteAsset:      quote.Identifier(),
		QuoteClass:      class,
		PairSymbol:      shortAddress(token.Identifier) + "/" + quote.Symbol(),
	}
}

// tokenDecimals returns the token decimals or a decode error when unknown.
func tokenDecimals(token domain.Token) (uint8, error) {
	if !token.DecimalsKnown() {
		return 0, domain.ErrDecode("decimals of "+token.ID()+" are unknown", nil)
	}
	return uint8(token.Decimals), nil
}

// balanceOf reads the ERC20 balance of holder.
func (v venue) balanceOf(ctx context.Context, tokenAddr, holder common.Address) (*big.Int, error) {
	values, err := v.call(ctx, erc20ABI, tokenAddr, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	return asBigInt(values, 0, "balanceOf")
}

// decodeSlot0 reads sqrtPriceX96 and tick from the first two words of a
// slot0 return. It accepts both the Uniswap and PancakeSwap layouts.
func decodeSlot0(out []byte) (*big.Int, int32, error) {
	if len(out) < 64 {
		return nil, 0, domain.ErrDecode(fmt.Sprintf("slot0 returned %d bytes", len(out)), nil)
	}
	sqrtPrice := new(big.Int).SetBytes(out[:32])
	// int24 is sign-extended to the full word.
	tick := int32(binary.BigEndian.Uint32(out[60:64]))
	return sqrtPrice, tick, nil
}

func asBigInt(values []any, i int, method string) (*big.Int, error) {
	if len(values) <= i {
		return nil, domain.ErrDecode(method+" returned too few values", nil)
	}
	n, ok := values[i].(*big.Int)
	if !ok {
		return nil, domain.ErrDecode(fmt.Sprintf("%s value %d is %T", method, i, values[i]), nil)
	}
	return n, nil
}

func asAddress(values []any, method string) (common.Address, error) {
	if len(values) == 0 {
		return common.Address{}, domain.ErrDecode(method+" returned no values", nil)
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, domain.ErrDecode(fmt.Sprintf("%s value is %T", method, values[0]), nil)
	}
	return addr, nil
}

func shortAddress(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}
