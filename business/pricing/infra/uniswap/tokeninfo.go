package uniswap

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/token-price-engine/business/pricing/app"
	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/cache"
	"github.com/fd1az/token-price-engine/internal/logger"
)

var _ app.TokenInfoReader = (*TokenInfo)(nil)

// decimalsTTL bounds cached ERC20 decimals.
const decimalsTTL = 24 * time.Hour

// TokenInfo reads ERC20 metadata and caches it per token.
type TokenInfo struct {
	venues   map[asset.Chain]venue
	decimals *cache.Cache[string, uint8]
}

// NewTokenInfo creates a TokenInfo over one reader per chain.
func NewTokenInfo(readers []EVMReader, log logger.LoggerInterface) *TokenInfo {
	venues := make(map[asset.Chain]venue, len(readers))
	for _, r := range readers {
		venues[r.Chain()] = newVenue("erc20", r, nil, log)
	}
	return &TokenInfo{
		venues:   venues,
		decimals: cache.New[string, uint8](decimalsTTL),
	}
}

// Decimals returns the ERC20 decimals of identifier.
func (t *TokenInfo) Decimals(ctx context.Context, chain asset.Chain, identifier string) (uint8, error) {
	v, ok := t.venues[chain]
	if !ok {
		return 0, apperror.New(apperror.CodeUnsupportedChain, apperror.WithContext(string(chain)))
	}

	addr := common.HexToAddress(identifier)
	key := string(chain) + ":" + addr.Hex()
	if d, ok := t.decimals.Get(ctx, key); ok {
		return d, nil
	}

	values, err := v.call(ctx, erc20ABI, addr, "decimals")
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, domain.ErrDecode("decimals returned no values", nil)
	}
	d, ok := values[0].(uint8)
	if !ok {
		return 0, domain.ErrDecode("decimals is not uint8", nil)
	}

	t.decimals.Set(ctx, key, d, 0)
	return d, nil
}

// Close stops the cache janitor.
func (t *TokenInfo) Close() {
	t.decimals.Close()
}
