package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/vilenarios/token-swapper/internal/domain"
	"github.com/vilenarios/token-swapper/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using ClickHouse.
// Observations are append-only and queried for analytics, so an eventually
// merged MergeTree table is a good fit.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// Insert adds one observation.
func (s *PriceHistoryStore) Insert(ctx context.Context, p *domain.PricePoint) error {
	if p == nil || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO price_history (symbol, price, as_of, source)
		VALUES (?, ?, ?, ?)
	`
	if err := s.conn.Exec(ctx, query, p.Symbol, p.Price, p.AsOf, p.Source); err != nil {
		return fmt.Errorf("insert price point: %w", err)
	}
	return nil
}

// GetBySymbol retrieves all observations for a symbol, ordered by time ASC.
func (s *PriceHistoryStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error) {
	query := `
		SELECT symbol, price, as_of, source
		FROM price_history
		WHERE symbol = ?
		ORDER BY as_of ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var result []*domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		var asOf time.Time
		if err := rows.Scan(&p.Symbol, &p.Price, &asOf, &p.Source); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		p.AsOf = asOf.UTC()
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history: %w", err)
	}
	return result, nil
}
