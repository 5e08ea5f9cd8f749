package execution

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vilenarios/token-swapper/internal/domain"
)

// SimulatedDriver pretends to execute routes: it emits one synthetic leg and
// settles at the quoted amount. Useful for rehearsing policy without spending
// funds.
type SimulatedDriver struct {
	chainID string
	delay   time.Duration
	logger  *zap.Logger
	seq     int
}

// NewSimulatedDriver creates a dry-run driver that reports legs on chainID.
func NewSimulatedDriver(chainID string, delay time.Duration, logger *zap.Logger) *SimulatedDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulatedDriver{chainID: chainID, delay: delay, logger: logger}
}

// Compile-time interface check.
var _ Driver = (*SimulatedDriver)(nil)

// Execute emits broadcast then completed for one synthetic leg and settles at
// the quoted destination amount.
func (d *SimulatedDriver) Execute(
	ctx context.Context,
	route *domain.RouteQuote,
	signers SignerResolver,
	onBroadcast func(LegEvent),
	onCompleted func(LegEvent),
) (*Result, error) {
	for _, req := range route.RequiredSigners {
		if _, err := signers(req.ChainID); err != nil {
			return nil, fmt.Errorf("resolve signer for chain %s: %w", req.ChainID, err)
		}
	}

	d.seq++
	ref := fmt.Sprintf("sim-%d", d.seq)

	if d.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.delay):
		}
	}

	d.logger.Info("simulated execution",
		zap.String("txRef", ref),
		zap.Float64("settledAmount", route.QuotedDestAmount))

	if onBroadcast != nil {
		onBroadcast(LegEvent{HopID: d.chainID, TxRef: ref})
	}
	if onCompleted != nil {
		onCompleted(LegEvent{HopID: d.chainID, TxRef: ref, SettledAmount: route.QuotedDestAmount})
	}

	return &Result{SettledDestAmount: route.QuotedDestAmount, PrimaryRef: ref}, nil
}
