package gateway

import (
	"context"
	"sync"

	"jax-execution-core/internal/clock"
	"jax-execution-core/internal/domain"

	"github.com/google/uuid"
)

// Paper is a simulated gateway for integration tests and dry runs: it
// accepts every order and reports it fully filled on the next GetFills
// poll, and never reports a fully-filled order a second time.
type Paper struct {
	mu      sync.Mutex
	pending map[string]domain.Order // brokerID -> order, awaiting first poll
	filled  map[string]bool         // brokerID -> already reported fully filled
}

func NewPaper() *Paper {
	return &Paper{
		pending: make(map[string]domain.Order),
		filled:  make(map[string]bool),
	}
}

func (p *Paper) SubmitOrder(ctx context.Context, o domain.Order) (string, error) {
	brokerID := "PAPER_" + uuid.NewString()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[brokerID] = o
	return brokerID, nil
}

func (p *Paper) CancelOrder(ctx context.Context, brokerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, brokerID)
	return nil
}

func (p *Paper) ReplaceOrder(ctx context.Context, brokerID string, replacement domain.Order) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, brokerID)

	newBrokerID := "PAPER_" + uuid.NewString()
	p.pending[newBrokerID] = replacement
	return newBrokerID, nil
}

func (p *Paper) GetFills(ctx context.Context) ([]domain.ExecutionReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := clock.Now(ctx)
	var reports []domain.ExecutionReport
	for brokerID, o := range p.pending {
		if p.filled[brokerID] {
			continue
		}
		reports = append(reports, domain.ExecutionReport{
			BrokerOrderID:  brokerID,
			Symbol:         o.Symbol,
			Side:           o.Side,
			FilledQuantity: o.Quantity,
			AvgFillPrice:   o.LimitPrice,
			FillTime:       now,
		})
		p.filled[brokerID] = true
		delete(p.pending, brokerID)
	}
	return reports, nil
}

var _ Gateway = (*Paper)(nil)
