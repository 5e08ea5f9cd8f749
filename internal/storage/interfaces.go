package storage

import (
	"context"

	"github.com/vilenarios/token-swapper/internal/domain"
)

// LedgerStore is the durable, append-only swap transaction ledger.
// Records are complete when appended and never mutated afterwards.
type LedgerStore interface {
	// Append adds a finished record. Returns ErrDuplicateKey if the record ID
	// already exists, ErrInvalidInput if the record is nil, has no ID, or is
	// still pending.
	Append(ctx context.Context, r *domain.SwapRecord) error

	// All retrieves every record, ordered by start time ASC.
	All(ctx context.Context) ([]*domain.SwapRecord, error)

	// Completed retrieves only records with StatusCompleted, ordered by start time ASC.
	Completed(ctx context.Context) ([]*domain.SwapRecord, error)

	// TotalCostBasisUSD sums cost basis over completed records.
	TotalCostBasisUSD(ctx context.Context) (float64, error)

	// AverageEffectiveRate returns the arithmetic-mean effective rate over
	// completed records, 0 when none exist.
	AverageEffectiveRate(ctx context.Context) (float64, error)
}

// PriceHistoryStore records every price observation the oracle fetches.
// Best-effort analytics sink; the oracle tolerates its failures.
type PriceHistoryStore interface {
	// Insert adds one observation.
	Insert(ctx context.Context, p *domain.PricePoint) error

	// GetBySymbol retrieves all observations for a symbol, ordered by time ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error)
}
