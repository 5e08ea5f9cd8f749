// Package main exports the swap ledger as an accounting CSV and prints
// summary statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vilenarios/token-swapper/internal/config"
	"github.com/vilenarios/token-swapper/internal/reporting"
	"github.com/vilenarios/token-swapper/internal/storage/migrations"
	"github.com/vilenarios/token-swapper/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	out := flag.String("out", "", "Output CSV path (default exports/swaps-<timestamp>.csv)")
	summaryOnly := flag.Bool("summary", false, "Print summary statistics without writing a CSV")
	flag.Parse()

	if err := run(*configPath, *out, *summaryOnly); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, out string, summaryOnly bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Ledger.Backend != "postgres" {
		return fmt.Errorf("reporting requires the postgres ledger backend, configured backend is %q", cfg.Ledger.Backend)
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.Ledger.PostgresDSN)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}

	ledger := postgres.NewLedgerStore(pool)

	all, err := ledger.All(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	completed, err := ledger.Completed(ctx)
	if err != nil {
		return fmt.Errorf("load completed swaps: %w", err)
	}
	totalCostBasis, err := ledger.TotalCostBasisUSD(ctx)
	if err != nil {
		return fmt.Errorf("total cost basis: %w", err)
	}
	avgRate, err := ledger.AverageEffectiveRate(ctx)
	if err != nil {
		return fmt.Errorf("average effective rate: %w", err)
	}

	fmt.Printf("Ledger summary (%s -> %s)\n", cfg.Pair.SourceAsset, cfg.Pair.DestAsset)
	fmt.Printf("  Records:              %d (%d completed, %d failed)\n", len(all), len(completed), len(all)-len(completed))
	fmt.Printf("  Total cost basis:     $%.2f\n", totalCostBasis)
	fmt.Printf("  Avg effective rate:   %.8f\n", avgRate)

	if summaryOnly {
		return nil
	}

	path, err := reporting.NewExporter(ledger).ExportCSV(ctx, out)
	if err != nil {
		return fmt.Errorf("export accounting rows: %w", err)
	}
	fmt.Printf("  Accounting export:    %s (%d rows)\n", path, len(completed))
	return nil
}
