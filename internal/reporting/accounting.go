// Package reporting projects the swap ledger into accounting exports.
package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vilenarios/token-swapper/internal/domain"
	"github.com/vilenarios/token-swapper/internal/storage"
)

// AccountingRow is one flat row of the accounting export.
// Only completed swaps project to rows: failed attempts carry no realized
// cost basis, though they stay in the full ledger history.
type AccountingRow struct {
	Date             string // human-readable UTC date
	SentAmount       string
	SentCurrency     string
	ReceivedAmount   string
	ReceivedCurrency string
	FeeAmount        string // blank when no fee was charged
	FeeCurrency      string
	NetWorthAmount   string // cost basis in the net-worth currency
	NetWorthCurrency string
	Label            string
	Description      string
	TxHash           string
	ChainLegRefs     string // all observed leg references, ';'-joined
}

// DateFormat is the row date layout.
const DateFormat = "2006-01-02 15:04:05 UTC"

// Exporter renders the ledger's completed swaps as accounting rows.
type Exporter struct {
	ledger storage.LedgerStore
	now    func() time.Time // injectable clock for deterministic file names
}

// NewExporter creates an Exporter over the ledger.
func NewExporter(ledger storage.LedgerStore) *Exporter {
	return &Exporter{
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.now = now
	return e
}

// Rows projects completed records into accounting rows, ordered by start time.
func (e *Exporter) Rows(ctx context.Context) ([]AccountingRow, error) {
	records, err := e.ledger.Completed(ctx)
	if err != nil {
		return nil, fmt.Errorf("load completed swaps: %w", err)
	}

	rows := make([]AccountingRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, projectRow(r))
	}
	return rows, nil
}

// ExportCSV writes the accounting rows to path and returns the path written.
// When path is empty a timestamped name under exports/ is used.
func (e *Exporter) ExportCSV(ctx context.Context, path string) (string, error) {
	rows, err := e.Rows(ctx)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = filepath.Join("exports", fmt.Sprintf("swaps-%s.csv", e.now().Format("20060102-150405")))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create export directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(RenderCSV(rows)), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// projectRow flattens one completed record.
func projectRow(r *domain.SwapRecord) AccountingRow {
	feeAmount := ""
	feeCurrency := ""
	if r.FeeUSD > 0 {
		feeAmount = normalize(r.FeeUSD)
		feeCurrency = "USD"
	}

	refs := make([]string, 0, len(r.ChainLegs))
	for _, leg := range r.ChainLegs {
		refs = append(refs, leg.TxRef)
	}

	return AccountingRow{
		Date:             r.StartedAt.UTC().Format(DateFormat),
		SentAmount:       normalize(r.SourceAmount),
		SentCurrency:     r.SourceAsset,
		ReceivedAmount:   normalize(r.DestAmount),
		ReceivedCurrency: r.DestAsset,
		FeeAmount:        feeAmount,
		FeeCurrency:      feeCurrency,
		NetWorthAmount:   normalize(r.CostBasisUSD),
		NetWorthCurrency: "USD",
		Label:            "swap",
		Description:      fmt.Sprintf("Swapped %s %s for %s %s", normalize(r.SourceAmount), r.SourceAsset, normalize(r.DestAmount), r.DestAsset),
		TxHash:           r.PrimaryTxRef,
		ChainLegRefs:     strings.Join(refs, ";"),
	}
}

// normalize renders an amount as a plain decimal without float artifacts or
// scientific notation.
func normalize(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// RenderCSV renders accounting rows as a CSV string.
func RenderCSV(rows []AccountingRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("Date,Sent Amount,Sent Currency,Received Amount,Received Currency,")
	sb.WriteString("Fee Amount,Fee Currency,Net Worth Amount,Net Worth Currency,")
	sb.WriteString("Label,Description,TxHash,Chain Leg Refs\n")

	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
			row.Date,
			row.SentAmount,
			row.SentCurrency,
			row.ReceivedAmount,
			row.ReceivedCurrency,
			row.FeeAmount,
			row.FeeCurrency,
			row.NetWorthAmount,
			row.NetWorthCurrency,
			row.Label,
			row.Description,
			row.TxHash,
			row.ChainLegRefs,
		))
	}

	return sb.String()
}
