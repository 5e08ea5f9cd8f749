package domain

import "time"

// PricePoint is one observed USD price for a symbol.
type PricePoint struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"` // USD per unit
	AsOf   time.Time `json:"asOf"`
	Source string    `json:"source"` // which feed produced it
}

// Balance is the spendable balance of one denomination.
type Balance struct {
	Amount float64 `json:"amount"` // native units
	Denom  string  `json:"denom"`
}
