// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/token-price-engine/business/blockchain/domain"
	"github.com/fd1az/token-price-engine/internal/asset"
)

// EVMReader is read-only access to one EVM chain.
type EVMReader interface {
	// Chain returns the chain this reader serves.
	Chain() asset.Chain

	// CallContract executes a read-only call against the latest block.
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// BlockNumber returns the latest block number.
	BlockNumber(ctx context.Context) (uint64, error)
}

// SolanaReader is read-only access to Solana account state.
type SolanaReader interface {
	// GetAccountInfo returns the raw account, or a NOT_FOUND error when it does not exist.
	GetAccountInfo(ctx context.Context, account domain.PublicKey) (*domain.AccountInfo, error)

	// GetTokenBalances returns decimal-normalized SPL balances in request order.
	GetTokenBalances(ctx context.Context, accounts []domain.PublicKey) ([]domain.TokenBalance, error)

	// GetProgramAccounts scans accounts owned by program that match every filter.
	GetProgramAccounts(ctx context.Context, program domain.PublicKey, filters ...domain.AccountFilter) ([]domain.ProgramAccount, error)

	// GetSlot returns the latest confirmed slot.
	GetSlot(ctx context.Context) (uint64, error)
}
