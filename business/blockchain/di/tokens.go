// Package di contains dependency injection tokens for the blockchain context.
package di

import (
	"github.com/fd1az/token-price-engine/business/blockchain/app"
	"github.com/fd1az/token-price-engine/business/blockchain/infra/evm"
	"github.com/fd1az/token-price-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ChainService = di.NewToken[*app.ChainService]("blockchain.ChainService")
)

// Private dependency tokens - internal to blockchain module
var (
	EVMClients   = di.NewToken[[]*evm.Client]("blockchain:evmClients")
	SolanaReader = di.NewToken[app.SolanaReader]("blockchain:solanaReader")
)

// Helper functions for type-safe access
func GetChainService(c di.ServiceRegistry) *app.ChainService {
	return di.GetToken(c, ChainService)
}

func GetEVMClients(c di.ServiceRegistry) []*evm.Client {
	return di.GetToken(c, EVMClients)
}

func GetSolanaReader(c di.ServiceRegistry) app.SolanaReader {
	return di.GetToken(c, SolanaReader)
}
