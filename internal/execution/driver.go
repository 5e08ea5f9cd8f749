// Package execution drives a quoted route through the cross-chain execution
// backend and reports per-leg lifecycle events back to the caller.
package execution

import (
	"context"

	"github.com/vilenarios/token-swapper/internal/domain"
)

// SignerResolver maps a chain ID to the address that signs on it.
// Actual signing happens inside the wallet service; the driver only forwards
// addresses so the backend knows who will sign each hop.
type SignerResolver func(chainID string) (string, error)

// LegEvent is one lifecycle observation for an on-chain step.
type LegEvent struct {
	HopID         string  // chain/network id
	TxRef         string  // opaque transaction hash
	SettledAmount float64 // set on completed events when the backend reports a precise amount, else 0
}

// Result is the final settled outcome of a driven route.
type Result struct {
	SettledDestAmount float64
	PrimaryRef        string
}

// Driver executes a previously quoted route. Execute may run arbitrarily long;
// the caller enforces its own deadline. onBroadcast fires when a leg is
// observed on-chain but not yet final, onCompleted when a leg settles.
type Driver interface {
	Execute(
		ctx context.Context,
		route *domain.RouteQuote,
		signers SignerResolver,
		onBroadcast func(LegEvent),
		onCompleted func(LegEvent),
	) (*Result, error)
}
