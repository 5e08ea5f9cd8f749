package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vilenarios/token-swapper/internal/domain"
	"github.com/vilenarios/token-swapper/internal/storage"
)

// PriceHistoryStore is an in-memory implementation of storage.PriceHistoryStore.
type PriceHistoryStore struct {
	mu   sync.RWMutex
	data []*domain.PricePoint
}

// NewPriceHistoryStore creates a new in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// Insert adds one observation.
func (s *PriceHistoryStore) Insert(_ context.Context, p *domain.PricePoint) error {
	if p == nil || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *p
	s.data = append(s.data, &c)
	return nil
}

// GetBySymbol retrieves all observations for a symbol, ordered by time ASC.
func (s *PriceHistoryStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if p.Symbol == symbol {
			c := *p
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AsOf.Before(result[j].AsOf)
	})
	return result, nil
}
