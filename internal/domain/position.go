package domain

import "github.com/shopspring/decimal"

// Position is a per-symbol signed-quantity / average-price tuple.
// Sign convention: long > 0, short < 0, flat == 0. Invariant: SignedQuantity
// == 0 implies AvgPrice == 0.
type Position struct {
	Symbol         string
	SignedQuantity decimal.Decimal
	AvgPrice       decimal.Decimal
}

func (p Position) IsFlat() bool {
	return p.SignedQuantity.IsZero()
}
