package domain

import "encoding/json"

// SignerRequirement names the chain and address that must sign one hop.
type SignerRequirement struct {
	ChainID string `json:"chainId"`
	Address string `json:"address"`
}

// RouteQuote is a quoted cross-chain route. Transient: it lives between the
// quoting and execution phases of one cycle and is never persisted.
//
// Payload is the provider's full route description and is passed back to the
// execution driver unmodified. Nothing outside the documented fields is
// inspected.
type RouteQuote struct {
	SourceAmount     float64             `json:"sourceAmount"`
	QuotedDestAmount float64             `json:"quotedDestAmount"`
	FeeUSD           float64             `json:"feeUsd"`
	RequiredSigners  []SignerRequirement `json:"requiredSigners"` // one per hop
	Payload          json.RawMessage     `json:"payload"`
}
