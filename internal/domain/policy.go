package domain

import (
	"fmt"
	"time"
)

// TradePolicy bounds a single swap cycle. Immutable for the lifetime of a run.
type TradePolicy struct {
	MinUSD           float64       // smallest trade worth submitting, in quote currency
	MaxUSD           float64       // hard cap per trade, in quote currency
	SwapPercentage   float64       // 0-100, share of balance eligible for swapping
	KeepReserve      float64       // native units always left in the wallet
	MaxSlippageBps   int           // passed through to the route provider
	MinEffectiveRate float64       // floor on quoted dest-per-source rate
	ExecutionTimeout time.Duration // wall-clock deadline for route execution
}

// Validate checks policy invariants.
func (p TradePolicy) Validate() error {
	if p.MinUSD < 0 || p.MaxUSD < 0 {
		return fmt.Errorf("trade bounds must be non-negative: min=%v max=%v", p.MinUSD, p.MaxUSD)
	}
	if p.MinUSD > p.MaxUSD {
		return fmt.Errorf("min trade size %v exceeds max %v", p.MinUSD, p.MaxUSD)
	}
	if p.SwapPercentage < 0 || p.SwapPercentage > 100 {
		return fmt.Errorf("swap percentage %v outside [0,100]", p.SwapPercentage)
	}
	if p.KeepReserve < 0 {
		return fmt.Errorf("keep reserve must be non-negative, got %v", p.KeepReserve)
	}
	if p.MaxSlippageBps < 0 {
		return fmt.Errorf("max slippage must be non-negative, got %d", p.MaxSlippageBps)
	}
	if p.MinEffectiveRate <= 0 {
		return fmt.Errorf("min effective rate must be positive, got %v", p.MinEffectiveRate)
	}
	if p.ExecutionTimeout <= 0 {
		return fmt.Errorf("execution timeout must be positive, got %v", p.ExecutionTimeout)
	}
	return nil
}
