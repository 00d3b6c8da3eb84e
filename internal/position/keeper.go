// Package position maintains per-symbol positions with weighted-average
// cost accounting, guarded by a single writer-preferring RWMutex.
package position

import (
	"sync"

	"jax-execution-core/internal/domain"

	"github.com/shopspring/decimal"
)

type Keeper struct {
	mu        sync.RWMutex
	positions map[string]domain.Position
}

func NewKeeper() *Keeper {
	return &Keeper{positions: make(map[string]domain.Position)}
}

// OnFill applies a single fill to the symbol's position. fillQty and
// fillPrice must both be the incremental (non-cumulative) amounts for this
// fill.
func (k *Keeper) OnFill(symbol string, fillQty decimal.Decimal, fillPrice decimal.Decimal, side domain.Side) {
	if !fillQty.IsPositive() {
		return
	}

	signedFill := fillQty
	if side == domain.SideSell {
		signedFill = fillQty.Neg()
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	pos := k.positions[symbol]
	oldQty := pos.SignedQuantity
	newQty := oldQty.Add(signedFill)

	newAvg := pos.AvgPrice
	if fillPrice.IsPositive() {
		switch {
		case newQty.IsZero():
			newAvg = decimal.Zero
		case oldQty.IsZero():
			newAvg = fillPrice
		case oldQty.Sign()*newQty.Sign() < 0:
			// sign flip: cost basis resets to the fill that crossed through flat
			newAvg = fillPrice
		case oldQty.Sign() == signedFill.Sign():
			// adding to the same side: weighted average
			numerator := oldQty.Mul(pos.AvgPrice).Add(signedFill.Mul(fillPrice))
			newAvg = numerator.Div(newQty)
		default:
			// reducing without flipping: cost basis unchanged
			newAvg = pos.AvgPrice
		}
	}

	k.positions[symbol] = domain.Position{
		Symbol:         symbol,
		SignedQuantity: newQty,
		AvgPrice:       newAvg,
	}
}

// Get returns a snapshot of a single symbol's position.
func (k *Keeper) Get(symbol string) domain.Position {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if p, ok := k.positions[symbol]; ok {
		return p
	}
	return domain.Position{Symbol: symbol, SignedQuantity: decimal.Zero, AvgPrice: decimal.Zero}
}

// All returns a snapshot of every known position.
func (k *Keeper) All() []domain.Position {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]domain.Position, 0, len(k.positions))
	for _, p := range k.positions {
		out = append(out, p)
	}
	return out
}

// AggregateAcrossStrategies sums positions for the same symbol from multiple
// Keepers, one per strategy: signed quantities add, and the combined average
// price is sum(qty_i * avg_i) / sum(qty_i) when the sum is non-zero, else 0.
func AggregateAcrossStrategies(keepers []*Keeper) []domain.Position {
	type acc struct {
		qty         decimal.Decimal
		weightedSum decimal.Decimal
	}
	bySymbol := make(map[string]*acc)

	for _, k := range keepers {
		for _, p := range k.All() {
			a, ok := bySymbol[p.Symbol]
			if !ok {
				a = &acc{qty: decimal.Zero, weightedSum: decimal.Zero}
				bySymbol[p.Symbol] = a
			}
			a.qty = a.qty.Add(p.SignedQuantity)
			a.weightedSum = a.weightedSum.Add(p.SignedQuantity.Mul(p.AvgPrice))
		}
	}

	out := make([]domain.Position, 0, len(bySymbol))
	for symbol, a := range bySymbol {
		avg := decimal.Zero
		if !a.qty.IsZero() {
			avg = a.weightedSum.Div(a.qty)
		}
		out = append(out, domain.Position{Symbol: symbol, SignedQuantity: a.qty, AvgPrice: avg})
	}
	return out
}
