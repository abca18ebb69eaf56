package app

import (
	"context"
	"time"

	"github.com/fd1az/token-price-engine/business/blockchain/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
)

// ChainService hands out the configured chain readers.
type ChainService struct {
	evm    map[asset.Chain]EVMReader
	solana SolanaReader
}

// NewChainService creates a ChainService. solana may be nil when Solana is disabled.
func NewChainService(evm []EVMReader, solana SolanaReader) *ChainService {
	byChain := make(map[asset.Chain]EVMReader, len(evm))
	for _, r := range evm {
		byChain[r.Chain()] = r
	}
	return &ChainService{
		evm:    byChain,
		solana: solana,
	}
}

// EVM returns the reader for an EVM chain.
func (s *ChainService) EVM(chain asset.Chain) (EVMReader, error) {
	r, ok := s.evm[chain]
	if !ok {
		return nil, apperror.New(apperror.CodeUnsupportedChain,
			apperror.WithContext(string(chain)+" rpc not configured"))
	}
	return r, nil
}

// Solana returns the Solana reader.
func (s *ChainService) Solana() (SolanaReader, error) {
	if s.solana == nil {
		return nil, apperror.New(apperror.CodeUnsupportedChain,
			apperror.WithContext("solana rpc not configured"))
	}
	return s.solana, nil
}

// Chains returns the enabled chains in display order.
func (s *ChainService) Chains() []asset.Chain {
	var chains []asset.Chain
	for _, c := range asset.SupportedChains() {
		if s.Enabled(c) {
			chains = append(chains, c)
		}
	}
	return chains
}

// Enabled reports whether chain has a reader.
func (s *ChainService) Enabled(chain asset.Chain) bool {
	if chain == asset.ChainSolana {
		return s.solana != nil
	}
	_, ok := s.evm[chain]
	return ok
}

// Probe reads the chain head of one chain.
func (s *ChainService) Probe(ctx context.Context, chain asset.Chain) domain.ChainStatus {
	status := domain.ChainStatus{Chain: chain, State: domain.StateUnknown}
	start := time.Now()

	var height uint64
	var err error
	if chain == asset.ChainSolana {
		var r SolanaReader
		if r, err = s.Solana(); err == nil {
			height, err = r.GetSlot(ctx)
		}
	} else {
		var r EVMReader
		if r, err = s.EVM(chain); err == nil {
			height, err = r.BlockNumber(ctx)
		}
	}

	status.Latency = time.Since(start)
	status.CheckedAt = time.Now()
	if err != nil {
		status.State = domain.StateDegraded
		status.Err = err
		return status
	}
	status.State = domain.StateConnected
	status.Height = height
	return status
}

// Status probes every enabled chain.
func (s *ChainService) Status(ctx context.Context) []domain.ChainStatus {
	chains := s.Chains()
	out := make([]domain.ChainStatus, 0, len(chains))
	for _, c := range chains {
		out = append(out, s.Probe(ctx, c))
	}
	return out
}
