// Package gateway defines the broker-facing execution boundary: submit /
// cancel / replace / get_fills, safe for concurrent invocation from both
// the RPC threads and the fill-poll thread.
package gateway

import (
	"context"

	"jax-execution-core/internal/domain"
)

type Gateway interface {
	SubmitOrder(ctx context.Context, o domain.Order) (brokerID string, err error)
	CancelOrder(ctx context.Context, brokerID string) error
	ReplaceOrder(ctx context.Context, brokerID string, replacement domain.Order) (newBrokerID string, err error)
	GetFills(ctx context.Context) ([]domain.ExecutionReport, error)
}
