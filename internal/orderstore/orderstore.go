// Package orderstore persists every order's current state, keyed by local id.
package orderstore

import (
	"context"

	"jax-execution-core/internal/domain"

	"github.com/shopspring/decimal"
)

// Store is the durable, mutable record of every order's current state,
// keyed by local id.
type Store interface {
	StoreOrder(ctx context.Context, o domain.StoredOrder) error
	UpdateOrderStatus(ctx context.Context, localID string, status domain.OrderStatus) error
	UpdateBrokerID(ctx context.Context, localID string, brokerID string) error
	UpdateFillInfo(ctx context.Context, localID string, cumulativeQty decimal.Decimal, avgFillPrice decimal.Decimal) error
	GetOrder(ctx context.Context, localID string) (domain.StoredOrder, error)
	GetOpenOrders(ctx context.Context) ([]domain.StoredOrder, error)
	GetOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.StoredOrder, error)
}
