package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vilenarios/token-swapper/internal/domain"
	"github.com/vilenarios/token-swapper/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore.
// Used by tests and dry runs; it does not survive a restart.
type LedgerStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SwapRecord // keyed by record ID
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		data: make(map[string]*domain.SwapRecord),
	}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// Append adds a finished record. Returns ErrDuplicateKey if the ID exists.
func (s *LedgerStore) Append(_ context.Context, r *domain.SwapRecord) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}
	if r.Status != domain.StatusCompleted && r.Status != domain.StatusFailed {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.ID] = copyRecord(r)
	return nil
}

// All retrieves every record, ordered by start time ASC.
func (s *LedgerStore) All(_ context.Context) ([]*domain.SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SwapRecord, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, copyRecord(r))
	}
	sortByStart(result)
	return result, nil
}

// Completed retrieves only completed records, ordered by start time ASC.
func (s *LedgerStore) Completed(_ context.Context) ([]*domain.SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SwapRecord
	for _, r := range s.data {
		if r.Status == domain.StatusCompleted {
			result = append(result, copyRecord(r))
		}
	}
	sortByStart(result)
	return result, nil
}

// TotalCostBasisUSD sums cost basis over completed records.
func (s *LedgerStore) TotalCostBasisUSD(_ context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, r := range s.data {
		if r.Status == domain.StatusCompleted {
			total += r.CostBasisUSD
		}
	}
	return total, nil
}

// AverageEffectiveRate returns the mean effective rate over completed records,
// 0 when none exist.
func (s *LedgerStore) AverageEffectiveRate(_ context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float64
	var n int
	for _, r := range s.data {
		if r.Status == domain.StatusCompleted {
			sum += r.EffectiveRate
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

// copyRecord deep-copies a record so callers never share leg slices with the store.
func copyRecord(r *domain.SwapRecord) *domain.SwapRecord {
	c := *r
	if len(r.ChainLegs) > 0 {
		c.ChainLegs = make([]domain.ChainLeg, len(r.ChainLegs))
		copy(c.ChainLegs, r.ChainLegs)
	}
	return &c
}

func sortByStart(records []*domain.SwapRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}
