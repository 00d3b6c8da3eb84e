package httpapi

import (
	"context"
	"sync"
	"time"

	"jax-execution-core/internal/domain"
	"jax-execution-core/internal/orderstore"

	"github.com/shopspring/decimal"
)

// testStore is a minimal in-memory orderstore.Store, standing in for
// PostgresStore so the RPC handlers can be exercised without a database.
type testStore struct {
	mu     sync.Mutex
	orders map[string]domain.StoredOrder
}

func newTestStore() *testStore {
	return &testStore{orders: make(map[string]domain.StoredOrder)}
}

func (s *testStore) StoreOrder(ctx context.Context, o domain.StoredOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.LocalID] = o
	return nil
}

func (s *testStore) UpdateOrderStatus(ctx context.Context, localID string, status domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[localID]
	o.Status = status
	s.orders[localID] = o
	return nil
}

func (s *testStore) UpdateBrokerID(ctx context.Context, localID string, brokerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[localID]
	o.BrokerID = brokerID
	s.orders[localID] = o
	return nil
}

func (s *testStore) UpdateFillInfo(ctx context.Context, localID string, cumulativeQty, avgFillPrice decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[localID]
	o.FilledQty = cumulativeQty
	o.AvgFillPrice = avgFillPrice
	s.orders[localID] = o
	return nil
}

func (s *testStore) GetOrder(ctx context.Context, localID string) (domain.StoredOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[localID]
	if !ok {
		return domain.StoredOrder{}, domain.NewError(domain.ErrState, "no such order: %s", localID)
	}
	return o, nil
}

func (s *testStore) GetOpenOrders(ctx context.Context) ([]domain.StoredOrder, error) {
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

func (s *testStore) GetOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.StoredOrder, error) {
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

var _ orderstore.Store = (*testStore)(nil)

// testJournal is a minimal in-memory journal.Journal.
type testJournal struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func newTestJournal() *testJournal {
	return &testJournal{}
}

func (j *testJournal) Log(ctx context.Context, event domain.JournalEvent, data string, correlationID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, domain.JournalEntry{Timestamp: time.Now(), EventType: event, Data: data, CorrelationID: correlationID})
	return nil
}

func (j *testJournal) GetHistory(ctx context.Context, from, to time.Time, event *domain.JournalEvent) ([]domain.JournalEntry, error) {
	return nil, nil
}

func (j *testJournal) GetOrderHistory(ctx context.Context, correlationID string) ([]domain.JournalEntry, error) {
	return nil, nil
}

func (j *testJournal) Flush(ctx context.Context) error { return nil }
