// Package orchestrator runs the swap decision/execution cycle.
// One cycle: read balance and prices → size the trade → quote a route →
// check the rate → execute under a deadline → record the outcome.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vilenarios/token-swapper/internal/domain"
	"github.com/vilenarios/token-swapper/internal/execution"
	"github.com/vilenarios/token-swapper/internal/notify"
	"github.com/vilenarios/token-swapper/internal/observability"
	"github.com/vilenarios/token-swapper/internal/routing"
	"github.com/vilenarios/token-swapper/internal/storage"
	"github.com/vilenarios/token-swapper/internal/wallet"
)

// Outcome is the terminal state of one cycle.
type Outcome string

// Cycle outcomes. The three SKIPPED outcomes and BUSY never touch the ledger;
// COMPLETED and FAILED always append exactly one record.
const (
	OutcomeCompleted           Outcome = "COMPLETED"
	OutcomeFailed              Outcome = "FAILED"
	OutcomeBusy                Outcome = "BUSY"
	OutcomeSkippedNoBalance    Outcome = "SKIPPED_NO_BALANCE"
	OutcomeSkippedBelowMinimum Outcome = "SKIPPED_BELOW_MINIMUM"
	OutcomeSkippedRateTooLow   Outcome = "SKIPPED_RATE_TOO_LOW"
)

// CycleResult is what one trigger invocation produced.
type CycleResult struct {
	Outcome Outcome
	Record  *domain.SwapRecord // nil for BUSY and SKIPPED outcomes
}

// PriceSource resolves a symbol to a current USD price.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (*domain.PricePoint, error)
}

// Pair names the swap and where it happens.
type Pair struct {
	SourceAsset string // e.g. "ARIO"
	SourceChain string
	DestAsset   string // e.g. "USDC"
	DestChain   string
	AccountRef  string // wallet account holding the source asset
}

// Options for creating an Orchestrator.
type Options struct {
	Pair     Pair
	Policy   domain.TradePolicy
	Prices   PriceSource
	Balances wallet.Reader
	Routes   routing.Provider
	Driver   execution.Driver
	Signers  execution.SignerResolver
	Ledger   storage.LedgerStore
	Notifier notify.Notifier
	Metrics  *observability.Metrics // optional
	Logger   *zap.Logger
}

// Orchestrator owns the decision/execution state machine. At most one cycle
// runs at a time per instance; concurrent triggers are rejected with BUSY.
type Orchestrator struct {
	pair     Pair
	policy   domain.TradePolicy
	prices   PriceSource
	balances wallet.Reader
	routes   routing.Provider
	driver   execution.Driver
	signers  execution.SignerResolver
	ledger   storage.LedgerStore
	notifier notify.Notifier
	metrics  *observability.Metrics
	logger   *zap.Logger

	now   func() time.Time
	newID func() string

	busy atomic.Bool
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trade policy: %w", err)
	}
	if opts.Prices == nil || opts.Balances == nil || opts.Routes == nil ||
		opts.Driver == nil || opts.Ledger == nil {
		return nil, fmt.Errorf("missing required collaborator")
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	signers := opts.Signers
	if signers == nil {
		signers = func(chainID string) (string, error) {
			return "", fmt.Errorf("no signer configured for chain %s", chainID)
		}
	}

	return &Orchestrator{
		pair:     opts.Pair,
		policy:   opts.Policy,
		prices:   opts.Prices,
		balances: opts.Balances,
		routes:   opts.Routes,
		driver:   opts.Driver,
		signers:  signers,
		ledger:   opts.Ledger,
		notifier: notifier,
		metrics:  opts.Metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}, nil
}

// RunCycle executes one full cycle. It returns an error only when the cycle
// could not run or could not be recorded; quote and execution failures are
// reported through the returned record instead.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !o.busy.CompareAndSwap(false, true) {
		o.logger.Debug("cycle trigger ignored, another cycle in progress")
		return &CycleResult{Outcome: OutcomeBusy}, nil
	}
	defer o.busy.Store(false)

	startedAt := o.now()
	result, err := o.runCycle(ctx, startedAt)
	if result != nil {
		o.metrics.ObserveCycle(string(result.Outcome), o.now().Sub(startedAt))
	}
	return result, err
}

func (o *Orchestrator) runCycle(ctx context.Context, startedAt time.Time) (*CycleResult, error) {
	// Prices for independent symbols can be fetched concurrently.
	var sourcePrice, destPrice *domain.PricePoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := o.prices.GetPrice(gctx, o.pair.SourceAsset)
		if err != nil {
			return fmt.Errorf("source price: %w", err)
		}
		sourcePrice = p
		return nil
	})
	g.Go(func() error {
		p, err := o.prices.GetPrice(gctx, o.pair.DestAsset)
		if err != nil {
			return fmt.Errorf("dest price: %w", err)
		}
		destPrice = p
		return nil
	})
	if err := g.Wait(); err != nil {
		o.notifier.Notify(ctx, notify.LevelError, fmt.Sprintf("swap cycle aborted: %v", err), nil)
		return nil, err
	}

	balance, err := o.balances.GetBalance(ctx, o.pair.AccountRef, o.pair.SourceAsset)
	if err != nil {
		err = fmt.Errorf("read balance: %w", err)
		o.notifier.Notify(ctx, notify.LevelError, fmt.Sprintf("swap cycle aborted: %v", err), nil)
		return nil, err
	}

	// Sizing. Exits here never create a ledger record: no trade was attempted.
	sizing := sizeTrade(balance.Amount, o.policy, sourcePrice.Price)
	switch sizing.Skip {
	case skipNoBalance:
		o.logger.Info("skipping cycle, wallet empty", zap.String("asset", o.pair.SourceAsset))
		o.notifier.Notify(ctx, notify.LevelWarning,
			fmt.Sprintf("no %s balance to swap", o.pair.SourceAsset), nil)
		return &CycleResult{Outcome: OutcomeSkippedNoBalance}, nil
	case skipBelowMinimum:
		o.logger.Info("skipping cycle, trade below minimum",
			zap.Float64("amount", sizing.Amount),
			zap.Float64("minNative", sizing.MinNative))
		o.notifier.Notify(ctx, notify.LevelWarning,
			fmt.Sprintf("trade of %.6f %s is below the $%.2f minimum",
				sizing.Amount, o.pair.SourceAsset, o.policy.MinUSD), nil)
		return &CycleResult{Outcome: OutcomeSkippedBelowMinimum}, nil
	}
	amount := sizing.Amount

	// The record exists from here on: a trade is being attempted. The ID is
	// generated once and stays stable for the rest of the cycle.
	record := &domain.SwapRecord{
		ID:             o.newID(),
		StartedAt:      startedAt,
		SourceAsset:    o.pair.SourceAsset,
		DestAsset:      o.pair.DestAsset,
		SourceAmount:   amount,
		SourcePriceUSD: sourcePrice.Price,
		DestPriceUSD:   destPrice.Price,
		CostBasisUSD:   amount * sourcePrice.Price, // fixed at the sizing-phase price
		Status:         domain.StatusPending,
		PrimaryTxRef:   domain.PrimaryRefUnconfirmed,
	}

	// Quoting.
	quote, err := o.routes.QuoteRoute(ctx, routing.QuoteRequest{
		SourceDenom:    o.pair.SourceAsset,
		SourceChain:    o.pair.SourceChain,
		DestDenom:      o.pair.DestAsset,
		DestChain:      o.pair.DestChain,
		Amount:         amount,
		MaxSlippageBps: o.policy.MaxSlippageBps,
	})
	if err != nil {
		return o.fail(ctx, record, domain.FailureNoRoute, fmt.Errorf("quote route: %w", err))
	}

	// RateCheck. A rejected quote never reached the chain, so no record is kept.
	effectiveRate := quote.QuotedDestAmount / amount
	if effectiveRate < o.policy.MinEffectiveRate {
		o.logger.Warn("skipping cycle, quoted rate below floor",
			zap.Float64("effectiveRate", effectiveRate),
			zap.Float64("minEffectiveRate", o.policy.MinEffectiveRate))
		o.notifier.Notify(ctx, notify.LevelWarning,
			fmt.Sprintf("quoted rate %.8f %s/%s is below the %.8f floor, not swapping",
				effectiveRate, o.pair.DestAsset, o.pair.SourceAsset, o.policy.MinEffectiveRate), nil)
		return &CycleResult{Outcome: OutcomeSkippedRateTooLow}, nil
	}
	record.FeeUSD = quote.FeeUSD

	// Executing.
	execResult, legs, legSettled, execErr := o.execute(ctx, quote)
	record.ChainLegs = legs
	if len(legs) > 0 {
		record.PrimaryTxRef = legs[0].TxRef
	}

	if execErr != nil {
		kind := domain.FailureExecutionError
		if errors.Is(execErr, errExecutionTimeout) {
			kind = domain.FailureExecutionTimeout
		}
		return o.fail(ctx, record, kind, execErr)
	}

	// Settled. The driver's final amount wins; a completed leg's observed
	// amount is next; the quoted estimate only when neither reported one.
	destAmount := execResult.SettledDestAmount
	if destAmount <= 0 {
		destAmount = legSettled
	}
	if destAmount <= 0 {
		destAmount = quote.QuotedDestAmount
	}
	if record.PrimaryTxRef == domain.PrimaryRefUnconfirmed && execResult.PrimaryRef != "" {
		record.PrimaryTxRef = execResult.PrimaryRef
	}

	record.DestAmount = destAmount
	record.EffectiveRate = destAmount / amount
	record.Status = domain.StatusCompleted

	if err := o.ledger.Append(ctx, record); err != nil {
		err = fmt.Errorf("record completed swap: %w", err)
		o.notifier.Notify(ctx, notify.LevelError, fmt.Sprintf("swap executed but not recorded: %v", err), record)
		return &CycleResult{Outcome: OutcomeCompleted, Record: record}, err
	}
	o.metrics.ObserveLedgerAppend(record.Status)

	o.logger.Info("swap completed",
		zap.String("id", record.ID),
		zap.Float64("sourceAmount", record.SourceAmount),
		zap.Float64("destAmount", record.DestAmount),
		zap.Float64("effectiveRate", record.EffectiveRate),
		zap.String("primaryTxRef", record.PrimaryTxRef))
	o.notifier.Notify(ctx, notify.LevelSuccess,
		fmt.Sprintf("swapped %.6f %s for %.6f %s",
			record.SourceAmount, record.SourceAsset, record.DestAmount, record.DestAsset), record)

	return &CycleResult{Outcome: OutcomeCompleted, Record: record}, nil
}

// fail finalizes and records a failed attempt. The record keeps whatever
// partial progress was observed before the failure.
func (o *Orchestrator) fail(ctx context.Context, record *domain.SwapRecord, kind string, cause error) (*CycleResult, error) {
	record.Status = domain.StatusFailed
	record.ErrorDetail = fmt.Sprintf("%s: %v", kind, cause)
	record.DestAmount = 0
	record.EffectiveRate = 0

	o.logger.Error("swap failed",
		zap.String("id", record.ID),
		zap.String("kind", kind),
		zap.Error(cause))

	if err := o.ledger.Append(ctx, record); err != nil {
		err = fmt.Errorf("record failed swap: %w", err)
		o.notifier.Notify(ctx, notify.LevelError, fmt.Sprintf("swap failed and not recorded: %v", err), record)
		return &CycleResult{Outcome: OutcomeFailed, Record: record}, err
	}
	o.metrics.ObserveLedgerAppend(record.Status)

	o.notifier.Notify(ctx, notify.LevelError,
		fmt.Sprintf("swap of %.6f %s failed: %v", record.SourceAmount, record.SourceAsset, cause), record)
	return &CycleResult{Outcome: OutcomeFailed, Record: record}, nil
}

// errExecutionTimeout marks a cycle that hit the execution deadline.
var errExecutionTimeout = errors.New("execution deadline exceeded")

// execute drives the quoted route against the policy deadline. The deadline
// firing does not cancel the in-flight driver; events arriving after the
// collector closes are discarded. The third return value is the settled
// amount reported by completed leg events, 0 if none carried one.
func (o *Orchestrator) execute(ctx context.Context, quote *domain.RouteQuote) (*execution.Result, []domain.ChainLeg, float64, error) {
	collector := newLegCollector(o.now, o.logger)

	type driverOutcome struct {
		result *execution.Result
		err    error
	}
	done := make(chan driverOutcome, 1)

	go func() {
		result, err := o.driver.Execute(ctx, quote, o.signers,
			func(ev execution.LegEvent) { collector.observe(ev, domain.LegBroadcast) },
			func(ev execution.LegEvent) { collector.observe(ev, domain.LegCompleted) },
		)
		done <- driverOutcome{result: result, err: err}
	}()

	timer := time.NewTimer(o.policy.ExecutionTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		legs, settled := collector.close()
		if out.err != nil {
			return nil, legs, settled, fmt.Errorf("execute route: %w", out.err)
		}
		return out.result, legs, settled, nil
	case <-timer.C:
		// Partial progress stays on the record: legs may already be on-chain.
		legs, settled := collector.close()
		return nil, legs, settled, errExecutionTimeout
	case <-ctx.Done():
		legs, settled := collector.close()
		return nil, legs, settled, ctx.Err()
	}
}
