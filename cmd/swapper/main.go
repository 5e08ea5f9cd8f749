// Package main runs the swap daemon: a periodic trigger loop around the
// orchestrator, with a one-shot mode for manual invocation.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vilenarios/token-swapper/internal/config"
	"github.com/vilenarios/token-swapper/internal/execution"
	applog "github.com/vilenarios/token-swapper/internal/log"
	"github.com/vilenarios/token-swapper/internal/notify"
	"github.com/vilenarios/token-swapper/internal/observability"
	"github.com/vilenarios/token-swapper/internal/oracle"
	"github.com/vilenarios/token-swapper/internal/orchestrator"
	"github.com/vilenarios/token-swapper/internal/routing"
	"github.com/vilenarios/token-swapper/internal/storage"
	chstore "github.com/vilenarios/token-swapper/internal/storage/clickhouse"
	"github.com/vilenarios/token-swapper/internal/storage/memory"
	"github.com/vilenarios/token-swapper/internal/storage/migrations"
	"github.com/vilenarios/token-swapper/internal/storage/postgres"
	"github.com/vilenarios/token-swapper/internal/wallet"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	once := flag.Bool("once", false, "Run a single cycle and exit")
	flag.Parse()

	if err := run(*configPath, *once); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := applog.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("token_swapper")
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	ledger, cleanupLedger, err := buildLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanupLedger()

	priceOracle, cleanupOracle, err := buildOracle(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer cleanupOracle()

	var driver execution.Driver
	if cfg.Execution.Simulation {
		logger.Info("execution driver in simulation mode")
		driver = execution.NewSimulatedDriver(cfg.Execution.SimChain, cfg.Execution.SimDelay, logger)
	} else {
		driver = execution.NewWSDriver(cfg.Execution.WSURL, nil, logger)
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, logger)
	}

	signers := cfg.Signers
	orch, err := orchestrator.New(orchestrator.Options{
		Pair: orchestrator.Pair{
			SourceAsset: cfg.Pair.SourceAsset,
			SourceChain: cfg.Pair.SourceChain,
			DestAsset:   cfg.Pair.DestAsset,
			DestChain:   cfg.Pair.DestChain,
			AccountRef:  cfg.Pair.AccountRef,
		},
		Policy:   cfg.Policy.TradePolicy(),
		Prices:   priceOracle,
		Balances: wallet.NewRPCReader(cfg.Wallet.RPCURL),
		Routes:   routing.NewHTTPProvider(cfg.Routing.BaseURL),
		Driver:   driver,
		Signers: func(chainID string) (string, error) {
			addr, ok := signers[chainID]
			if !ok {
				return "", fmt.Errorf("no signer configured for chain %s", chainID)
			}
			return addr, nil
		},
		Ledger:   ledger,
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	if once {
		return runCycle(ctx, orch, logger)
	}

	logger.Info("swap daemon started",
		zap.String("pair", cfg.Pair.SourceAsset+"->"+cfg.Pair.DestAsset),
		zap.Duration("interval", cfg.Trigger.Interval))

	ticker := time.NewTicker(cfg.Trigger.Interval)
	defer ticker.Stop()

	// First cycle runs immediately rather than waiting out a full interval.
	if err := runCycle(ctx, orch, logger); err != nil {
		logger.Error("cycle failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("swap daemon stopped")
			return nil
		case <-ticker.C:
			if err := runCycle(ctx, orch, logger); err != nil {
				logger.Error("cycle failed", zap.Error(err))
			}
		}
	}
}

func runCycle(ctx context.Context, orch *orchestrator.Orchestrator, logger *zap.Logger) error {
	result, err := orch.RunCycle(ctx)
	if err != nil {
		return err
	}
	fields := []zap.Field{zap.String("outcome", string(result.Outcome))}
	if result.Record != nil {
		fields = append(fields, zap.String("recordId", result.Record.ID))
	}
	logger.Info("cycle finished", fields...)
	return nil
}

// buildLedger creates the configured ledger backend.
func buildLedger(ctx context.Context, cfg *config.Config) (storage.LedgerStore, func(), error) {
	switch cfg.Ledger.Backend {
	case "memory":
		return memory.NewLedgerStore(), func() {}, nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Ledger.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return postgres.NewLedgerStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

// buildOracle creates the price oracle with fallback, pegs, and the optional
// ClickHouse observation sink.
func buildOracle(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (*oracle.Oracle, func(), error) {
	opts := []oracle.Option{
		oracle.WithCacheTTL(cfg.Oracle.CacheTTL),
		oracle.WithMetrics(metrics),
	}
	if cfg.Oracle.FallbackURL != "" {
		opts = append(opts, oracle.WithFallback(oracle.NewHTTPSource(cfg.Oracle.FallbackName, cfg.Oracle.FallbackURL)))
	}
	for symbol, price := range cfg.Oracle.Pegs {
		opts = append(opts, oracle.WithPeg(symbol, price))
	}

	cleanup := func() {}
	if cfg.Oracle.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Oracle.ClickhouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		opts = append(opts, oracle.WithHistory(chstore.NewPriceHistoryStore(conn)))
		cleanup = func() { conn.Close() }
	}

	primary := oracle.NewHTTPSource(cfg.Oracle.PrimaryName, cfg.Oracle.PrimaryURL)
	return oracle.New(primary, logger, opts...), cleanup, nil
}
