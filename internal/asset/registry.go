package asset

import (
	"fmt"
	"strings"
	"sync"
)

// Registry is a thread-safe registry of known assets.
type Registry struct {
	byID     map[AssetID]*Asset
	bySymbol map[string][]*Asset // symbol -> assets (can have multiple on different chains)
	mu       sync.RWMutex
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[string][]*Asset),
	}
}

// Register adds an asset to the registry.
// Panics if an asset with the same ID is already registered.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.ID()
	if _, exists := r.byID[id]; exists {
		panic(fmt.Sprintf("asset: %s already registered", id))
	}

	r.byID[id] = a
	sym := strings.ToUpper(a.Symbol())
	r.bySymbol[sym] = append(r.bySymbol[sym], a)
}

// Get retrieves an asset by its ID.
func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	return a, ok
}

// MustGet retrieves an asset by its ID, panics if not found.
func (r *Registry) MustGet(id AssetID) *Asset {
	a, ok := r.Get(id)
	if !ok {
		panic(fmt.Sprintf("asset: %s not found in registry", id))
	}
	return a
}

// GetBySymbolAndChain retrieves an asset by symbol and chain.
func (r *Registry) GetBySymbolAndChain(symbol string, chain Chain) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.bySymbol[strings.ToUpper(symbol)] {
		if a.Chain() == chain {
			return a, true
		}
	}
	return nil, false
}

// Native returns the wrapped reference asset of a chain.
func (r *Registry) Native(chain Chain) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.byID {
		if a.Chain() == chain && a.IsNative() {
			return a, true
		}
	}
	return nil, false
}

// Stables returns the registered stable assets of a chain ordered by symbol.
func (r *Registry) Stables(chain Chain) []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Asset
	for _, a := range r.byID {
		if a.Chain() == chain && a.IsStable() {
			result = append(result, a)
		}
	}
	sortBySymbol(result)
	return result
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Has returns true if an asset with the given ID is registered.
func (r *Registry) Has(id AssetID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

func sortBySymbol(assets []*Asset) {
	for i := 1; i < len(assets); i++ {
		for j := i; j > 0 && assets[j].Symbol() < assets[j-1].Symbol(); j-- {
			assets[j], assets[j-1] = assets[j-1], assets[j]
		}
	}
}
