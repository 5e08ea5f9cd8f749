package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vilenarios/token-swapper/internal/domain"
	"github.com/vilenarios/token-swapper/internal/storage"
)

// LedgerStore implements storage.LedgerStore using PostgreSQL.
// Each append runs in its own implicit transaction, so readers never observe
// a partially written record.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// Append adds a finished record. Returns ErrDuplicateKey if the ID exists.
func (s *LedgerStore) Append(ctx context.Context, r *domain.SwapRecord) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}
	if r.Status != domain.StatusCompleted && r.Status != domain.StatusFailed {
		return storage.ErrInvalidInput
	}

	legs, err := json.Marshal(r.ChainLegs)
	if err != nil {
		return fmt.Errorf("marshal chain legs: %w", err)
	}

	query := `
		INSERT INTO swap_records (
			id, started_at, source_asset, dest_asset, source_amount, dest_amount,
			source_price_usd, dest_price_usd, cost_basis_usd, fee_usd, effective_rate,
			primary_tx_ref, status, error_detail, chain_legs
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = s.pool.Exec(ctx, query,
		r.ID,
		r.StartedAt,
		r.SourceAsset,
		r.DestAsset,
		r.SourceAmount,
		r.DestAmount,
		r.SourcePriceUSD,
		r.DestPriceUSD,
		r.CostBasisUSD,
		r.FeeUSD,
		r.EffectiveRate,
		r.PrimaryTxRef,
		r.Status,
		r.ErrorDetail,
		legs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("append swap record: %w", err)
	}
	return nil
}

// All retrieves every record, ordered by start time ASC.
func (s *LedgerStore) All(ctx context.Context) ([]*domain.SwapRecord, error) {
	return s.query(ctx, "")
}

// Completed retrieves only completed records, ordered by start time ASC.
func (s *LedgerStore) Completed(ctx context.Context) ([]*domain.SwapRecord, error) {
	return s.query(ctx, domain.StatusCompleted)
}

func (s *LedgerStore) query(ctx context.Context, status string) ([]*domain.SwapRecord, error) {
	query := `
		SELECT id, started_at, source_asset, dest_asset, source_amount, dest_amount,
		       source_price_usd, dest_price_usd, cost_basis_usd, fee_usd, effective_rate,
		       primary_tx_ref, status, error_detail, chain_legs
		FROM swap_records
	`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY started_at ASC, id ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query swap records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// TotalCostBasisUSD sums cost basis over completed records.
func (s *LedgerStore) TotalCostBasisUSD(ctx context.Context) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost_basis_usd), 0)
		FROM swap_records
		WHERE status = $1
	`

	var total float64
	if err := s.pool.QueryRow(ctx, query, domain.StatusCompleted).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum cost basis: %w", err)
	}
	return total, nil
}

// AverageEffectiveRate returns the mean effective rate over completed records,
// 0 when none exist.
func (s *LedgerStore) AverageEffectiveRate(ctx context.Context) (float64, error) {
	query := `
		SELECT COALESCE(AVG(effective_rate), 0)
		FROM swap_records
		WHERE status = $1
	`

	var avg float64
	if err := s.pool.QueryRow(ctx, query, domain.StatusCompleted).Scan(&avg); err != nil {
		return 0, fmt.Errorf("average effective rate: %w", err)
	}
	return avg, nil
}

// scanRecords scans swap record rows into domain objects.
func scanRecords(rows pgx.Rows) ([]*domain.SwapRecord, error) {
	var result []*domain.SwapRecord
	for rows.Next() {
		var r domain.SwapRecord
		var startedAt time.Time
		var legs []byte

		err := rows.Scan(
			&r.ID,
			&startedAt,
			&r.SourceAsset,
			&r.DestAsset,
			&r.SourceAmount,
			&r.DestAmount,
			&r.SourcePriceUSD,
			&r.DestPriceUSD,
			&r.CostBasisUSD,
			&r.FeeUSD,
			&r.EffectiveRate,
			&r.PrimaryTxRef,
			&r.Status,
			&r.ErrorDetail,
			&legs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap record: %w", err)
		}

		r.StartedAt = startedAt.UTC()
		if len(legs) > 0 {
			if err := json.Unmarshal(legs, &r.ChainLegs); err != nil {
				return nil, fmt.Errorf("unmarshal chain legs: %w", err)
			}
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap records: %w", err)
	}
	return result, nil
}
