package execution

import (
	"context"
	"sync"
	"time"

	"jax-execution-core/internal/domain"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory orderstore.Store, standing in for PostgresStore
// the way the paper gateway stands in for a real broker.
type memStore struct {
	mu     sync.Mutex
	orders map[string]domain.StoredOrder
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]domain.StoredOrder)}
}

func (s *memStore) StoreOrder(ctx context.Context, o domain.StoredOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.LocalID] = o
	return nil
}

func (s *memStore) UpdateOrderStatus(ctx context.Context, localID string, status domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[localID]
	if !ok {
		return domain.NewError(domain.ErrState, "no such order: %s", localID)
	}
	o.Status = status
	s.orders[localID] = o
	return nil
}

func (s *memStore) UpdateBrokerID(ctx context.Context, localID string, brokerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[localID]
	if !ok {
		return domain.NewError(domain.ErrState, "no such order: %s", localID)
	}
	o.BrokerID = brokerID
	s.orders[localID] = o
	return nil
}

func (s *memStore) UpdateFillInfo(ctx context.Context, localID string, cumulativeQty, avgFillPrice decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[localID]
	if !ok {
		return domain.NewError(domain.ErrState, "no such order: %s", localID)
	}
	o.FilledQty = cumulativeQty
	o.AvgFillPrice = avgFillPrice
	s.orders[localID] = o
	return nil
}

func (s *memStore) GetOrder(ctx context.Context, localID string) (domain.StoredOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[localID]
	if !ok {
		return domain.StoredOrder{}, domain.NewError(domain.ErrState, "no such order: %s", localID)
	}
	return o, nil
}

func (s *memStore) GetOpenOrders(ctx context.Context) ([]domain.StoredOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StoredOrder
	for _, o := range s.orders {
		if o.Status.Open() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) GetOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.StoredOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StoredOrder
	for _, o := range s.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

// memJournal is an in-memory journal.Journal.
type memJournal struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func newMemJournal() *memJournal {
	return &memJournal{}
}

func (j *memJournal) Log(ctx context.Context, event domain.JournalEvent, data string, correlationID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, domain.JournalEntry{
		ID: int64(len(j.entries) + 1), Timestamp: time.Now(), EventType: event,
		Data: data, CorrelationID: correlationID,
	})
	return nil
}

func (j *memJournal) GetHistory(ctx context.Context, from, to time.Time, event *domain.JournalEvent) ([]domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.JournalEntry
	for _, e := range j.entries {
		if event != nil && e.EventType != *event {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (j *memJournal) GetOrderHistory(ctx context.Context, correlationID string) ([]domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.JournalEntry
	for _, e := range j.entries {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (j *memJournal) Flush(ctx context.Context) error { return nil }

func (j *memJournal) countEvents(event domain.JournalEvent) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, e := range j.entries {
		if e.EventType == event {
			n++
		}
	}
	return n
}
