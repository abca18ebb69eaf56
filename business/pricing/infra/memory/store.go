// Package memory keeps pool descriptors in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/fd1az/token-price-engine/business/pricing/app"
	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/clock"
)

var _ app.PoolStore = (*Store)(nil)

// Store is an in-memory app.PoolStore. Descriptors are lost on restart.
type Store struct {
	mu    sync.RWMutex
	clock clock.Clock
	pools map[string]domain.PoolDescriptor
}

// NewStore creates an empty store.
func NewStore(clk clock.Clock) *Store {
	return &Store{
		clock: clk,
		pools: make(map[string]domain.PoolDescriptor),
	}
}

// Get returns a copy of the descriptor of tokenID, or nil.
func (s *Store) Get(_ context.Context, tokenID string) (*domain.PoolDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.pools[tokenID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// Save replaces the descriptor of tokenID.
func (s *Store) Save(_ context.Context, tokenID string, pool domain.PoolDescriptor) error {
	if err := pool.Validate(); err != nil {
		return err
	}
	if pool.UpdatedAt.IsZero() {
		pool.UpdatedAt = s.clock.Now()
	}

	s.mu.Lock()
	s.pools[tokenID] = pool
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of stored descriptors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools)
}
