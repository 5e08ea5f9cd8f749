package orchestrator

import (
	"math"

	"github.com/vilenarios/token-swapper/internal/domain"
)

// skipReason says why sizing produced no trade.
type skipReason int

const (
	skipNone skipReason = iota
	skipNoBalance
	skipBelowMinimum
)

// sizingResult is the outcome of trade sizing.
type sizingResult struct {
	Amount    float64 // native units to swap; meaningful only when Skip == skipNone
	MinNative float64 // policy minimum converted to native units
	MaxNative float64 // policy maximum converted to native units
	Skip      skipReason
}

// sizeTrade derives the trade size from the wallet balance under policy rules.
//
// Percentage and reserve do not compose: when both are set, the reserve rule
// recomputes from the raw balance and wins. Callers configuring both should
// expect reserve to dominate.
func sizeTrade(balance float64, policy domain.TradePolicy, priceUSD float64) sizingResult {
	if balance <= 0 {
		return sizingResult{Skip: skipNoBalance}
	}

	minNative := policy.MinUSD / priceUSD
	maxNative := policy.MaxUSD / priceUSD

	amount := balance
	if policy.SwapPercentage < 100 {
		amount = math.Floor(balance * policy.SwapPercentage / 100)
	}
	if policy.KeepReserve > 0 {
		amount = balance - policy.KeepReserve
	}
	if amount < 0 {
		amount = 0
	}
	amount = math.Min(amount, maxNative)

	if amount < minNative {
		return sizingResult{Amount: amount, MinNative: minNative, MaxNative: maxNative, Skip: skipBelowMinimum}
	}

	return sizingResult{Amount: amount, MinNative: minNative, MaxNative: maxNative}
}
