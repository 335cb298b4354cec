package core

import "github.com/shopspring/decimal"

// Aggregate is an amount summed over a group of transactions.
type Aggregate struct {
	Name   string
	Amount decimal.Decimal
}
