// Package blockchain implements the blockchain bounded context: read-only
// access to the EVM chains and Solana.
package blockchain

import (
	"context"
	"fmt"
	"time"

	"github.com/fd1az/token-price-engine/business/blockchain/app"
	blockchainDI "github.com/fd1az/token-price-engine/business/blockchain/di"
	"github.com/fd1az/token-price-engine/business/blockchain/domain"
	"github.com/fd1az/token-price-engine/business/blockchain/infra/evm"
	"github.com/fd1az/token-price-engine/business/blockchain/infra/solana"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/config"
	"github.com/fd1az/token-price-engine/internal/di"
	"github.com/fd1az/token-price-engine/internal/logger"
	"github.com/fd1az/token-price-engine/internal/monolith"
)

const probeTimeout = 5 * time.Second

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register EVM clients (private - one per enabled chain)
	di.RegisterToken(c, blockchainDI.EVMClients, func(sr di.ServiceRegistry) []*evm.Client {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var clients []*evm.Client
		for chain, chainCfg := range map[asset.Chain]config.ChainConfig{
			asset.ChainEthereum: cfg.Chains.Ethereum,
			asset.ChainBSC:      cfg.Chains.BSC,
		} {
			if !chainCfg.Enabled() {
				continue
			}
			client, err := evm.Dial(context.Background(), evmConfig(chain, chainCfg), log)
			if err != nil {
				panic(fmt.Sprintf("failed to dial %s rpc: %v", chain, err))
			}
			clients = append(clients, client)
		}
		return clients
	})

	// Register SolanaReader (private - nil when Solana is disabled)
	di.RegisterToken(c, blockchainDI.SolanaReader, func(sr di.ServiceRegistry) app.SolanaReader {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		chainCfg := cfg.Chains.Solana
		if !chainCfg.Enabled() {
			return nil
		}

		solCfg := solana.DefaultConfig(chainCfg.RPCURL)
		if chainCfg.Timeout > 0 {
			solCfg.Timeout = chainCfg.Timeout
		}
		if chainCfg.MaxConcurrency > 0 {
			solCfg.MaxConcurrency = chainCfg.MaxConcurrency
		}
		solCfg.RequestDelay = chainCfg.RequestDelay

		client, err := solana.NewClient(solCfg, log)
		if err != nil {
			panic("failed to create solana client: " + err.Error())
		}
		return client
	})

	// Register ChainService (public - exposed to other modules)
	di.RegisterToken(c, blockchainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		clients := blockchainDI.GetEVMClients(sr)
		readers := make([]app.EVMReader, 0, len(clients))
		for _, client := range clients {
			readers = append(readers, client)
		}
		return app.NewChainService(readers, blockchainDI.GetSolanaReader(sr))
	})

	return nil
}

// Startup registers RPC health checks and client shutdown.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	svc := blockchainDI.GetChainService(mono.Services())
	clients := blockchainDI.GetEVMClients(mono.Services())

	mono.OnClose(func() error {
		for _, client := range clients {
			client.Close()
		}
		return nil
	})

	if hs := mono.Health(); hs != nil {
		for _, chain := range svc.Chains() {
			hs.RegisterCheck("rpc:"+string(chain), func(ctx context.Context) (bool, string) {
				probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
				defer cancel()

				status := svc.Probe(probeCtx, chain)
				if status.State != domain.StateConnected {
					return false, status.Err.Error()
				}
				return true, fmt.Sprintf("height %d", status.Height)
			})
		}
	}

	log.Info(ctx, "blockchain module started", "chains", svc.Chains())
	return nil
}

func evmConfig(chain asset.Chain, c config.ChainConfig) evm.Config {
	cfg := evm.DefaultConfig(chain, c.RPCURL)
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	if c.MaxConcurrency > 0 {
		cfg.MaxConcurrency = c.MaxConcurrency
	}
	cfg.RequestDelay = c.RequestDelay
	return cfg
}
