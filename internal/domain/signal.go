package domain

import "github.com/shopspring/decimal"

// StrategySignal is the inbound instruction to open or adjust a position.
type StrategySignal struct {
	StrategyID     string          `validate:"required"`
	Symbol         string          `validate:"required"`
	Side           Side            `validate:"required,oneof=BUY SELL"`
	TargetQuantity decimal.Decimal `validate:"required"`
	Confidence     float64
	Metadata       map[string]string
}

// CancelSignal requests cancellation of a previously submitted local order.
type CancelSignal struct {
	StrategyID string `validate:"required"`
	OrderID    string `validate:"required"` // local id
}

// ReplaceSignal requests a replacement of an existing order with new terms.
type ReplaceSignal struct {
	StrategyID     string          `validate:"required"`
	Symbol         string          `validate:"required"`
	Side           Side            `validate:"required,oneof=BUY SELL"`
	TargetQuantity decimal.Decimal `validate:"required"`
	OrderID        string          `validate:"required"` // local id of the order being replaced
}

// KillSwitchRequest is an operator-initiated cancel-all.
type KillSwitchRequest struct {
	Reason      string `validate:"required"`
	InitiatedBy string `validate:"required"`
}
