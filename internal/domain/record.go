package domain

import "time"

// Swap lifecycle status. Pending only ever describes the in-memory record of a
// cycle that is still executing; persisted history holds completed or failed.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Failure kinds recorded on a failed SwapRecord.
const (
	FailureNoRoute          = "NO_ROUTE_FOUND"
	FailureExecutionTimeout = "EXECUTION_TIMEOUT"
	FailureExecutionError   = "EXECUTION_ERROR"
)

// ChainLeg lifecycle states. Transitions are monotonic:
// broadcast → completed, never back.
const (
	LegBroadcast = "BROADCAST"
	LegCompleted = "COMPLETED"
	LegFailed    = "FAILED"
)

// PrimaryRefUnconfirmed marks a record whose execution was submitted but for
// which no transaction hash was ever observed.
const PrimaryRefUnconfirmed = "unconfirmed"

// ChainLeg is one observed on-chain step of a multi-hop execution.
// Identity is (HopID, TxRef); updates replace State in place.
type ChainLeg struct {
	HopID      string    `json:"hopId"` // chain/network identifier
	TxRef      string    `json:"txRef"` // opaque transaction hash
	State      string    `json:"state"` // LegBroadcast | LegCompleted | LegFailed
	ObservedAt time.Time `json:"observedAt"`
}

// SwapRecord is the ledger entity for one attempted swap cycle.
// Built in full by the orchestrator, appended to the ledger exactly once,
// never mutated after insertion.
type SwapRecord struct {
	ID             string     `json:"id"` // stable across retries of one cycle
	StartedAt      time.Time  `json:"startedAt"`
	SourceAsset    string     `json:"sourceAsset"`
	DestAsset      string     `json:"destAsset"`
	SourceAmount   float64    `json:"sourceAmount"`
	DestAmount     float64    `json:"destAmount"`
	SourcePriceUSD float64    `json:"sourcePriceUsd"`
	DestPriceUSD   float64    `json:"destPriceUsd"`
	CostBasisUSD   float64    `json:"costBasisUsd"` // SourceAmount priced at trade time
	FeeUSD         float64    `json:"feeUsd"`
	EffectiveRate  float64    `json:"effectiveRate"` // DestAmount / SourceAmount
	PrimaryTxRef   string     `json:"primaryTxRef"`
	Status         string     `json:"status"`
	ErrorDetail    string     `json:"errorDetail,omitempty"` // set iff Status == FAILED
	ChainLegs      []ChainLeg `json:"chainLegs"`             // ordered by arrival
}
