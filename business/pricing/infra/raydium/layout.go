package raydium

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	chain "github.com/fd1az/token-price-engine/business/blockchain/domain"
	"github.com/fd1az/token-price-engine/business/pricing/domain"
)

// AMM v4 liquidity state.
const (
	AMMv4Size = 752

	ammv4BaseDecimals  = 32
	ammv4QuoteDecimals = 40
	ammv4BaseVault     = 336
	ammv4QuoteVault    = 368
	ammv4BaseMint      = 400
	ammv4QuoteMint     = 432
)

// CPMM pool state (Anchor account).
const (
	cpmmMinSize = 333

	cpmmAmmConfig = 8
	cpmmVault0    = 72
	cpmmVault1    = 104
	cpmmMint0     = 168
	cpmmMint1     = 200
	cpmmDecimals0 = 331
	cpmmDecimals1 = 332
)

// cpmmDiscriminator prefixes every CPMM PoolState account.
var cpmmDiscriminator = anchorDiscriminator("PoolState")

// poolState is the part of a pool account needed for pricing.
type poolState struct {
	Mint0, Mint1   chain.PublicKey
	Vault0, Vault1 chain.PublicKey
	Decimals0      uint8
	Decimals1      uint8
	AmmConfig      chain.PublicKey // CPMM only
}

// side returns the vaults ordered as (base, quote) for mint, and false if
// the pool does not hold mint.
func (p poolState) side(mint chain.PublicKey) (base, quote chain.PublicKey, ok bool) {
	switch mint {
	case p.Mint0:
		return p.Vault0, p.Vault1, true
	case p.Mint1:
		return p.Vault1, p.Vault0, true
	default:
		return chain.PublicKey{}, chain.PublicKey{}, false
	}
}

// other returns the mint paired with mint.
func (p poolState) other(mint chain.PublicKey) chain.PublicKey {
	if mint == p.Mint0 {
		return p.Mint1
	}
	return p.Mint0
}

func decodeAMMv4(data []byte) (poolState, error) {
	if len(data) != AMMv4Size {
		return poolState{}, domain.ErrDecode(fmt.Sprintf("amm v4 account has %d bytes, want %d", len(data), AMMv4Size), nil)
	}
	return poolState{
		Mint0:     key(data, ammv4BaseMint),
		Mint1:     key(data, ammv4QuoteMint),
		Vault0:    key(data, ammv4BaseVault),
		Vault1:    key(data, ammv4QuoteVault),
		Decimals0: uint8(binary.LittleEndian.Uint64(data[ammv4BaseDecimals:])),
		Decimals1: uint8(binary.LittleEndian.Uint64(data[ammv4QuoteDecimals:])),
	}, nil
}

func decodeCPMM(data []byte) (poolState, error) {
	if len(data) < cpmmMinSize {
		return poolState{}, domain.ErrDecode(fmt.Sprintf("cpmm account has %d bytes, want at least %d", len(data), cpmmMinSize), nil)
	}
	if !bytes.Equal(data[:8], cpmmDiscriminator[:]) {
		return poolState{}, domain.ErrDecode("cpmm account discriminator mismatch", nil)
	}
	return poolState{
		AmmConfig: key(data, cpmmAmmConfig),
		Mint0:     key(data, cpmmMint0),
		Mint1:     key(data, cpmmMint1),
		Vault0:    key(data, cpmmVault0),
		Vault1:    key(data, cpmmVault1),
		Decimals0: data[cpmmDecimals0],
		Decimals1: data[cpmmDecimals1],
	}, nil
}

func key(data []byte, offset int) chain.PublicKey {
	var pk chain.PublicKey
	copy(pk[:], data[offset:offset+chain.PublicKeySize])
	return pk
}

// anchorDiscriminator is the first 8 bytes of sha256("account:<name>").
func anchorDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}
