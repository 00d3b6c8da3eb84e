package orderstore

import (
	"context"
	"regexp"
	"testing"
	"time"

	"jax-execution-core/internal/clock"
	"jax-execution-core/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func TestPostgresStore_StoreOrder_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewPostgresStore(db)
	ctx := clock.WithClock(context.Background(), clock.FixedClock{T: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	o := domain.StoredOrder{
		Order: domain.Order{
			LocalID:    "ORD_1",
			Symbol:     "AAPL",
			Side:       domain.SideBuy,
			Quantity:   decimal.NewFromInt(10),
			Type:       domain.OrderTypeMarket,
			TIF:        domain.TIFDay,
			StrategyID: "S",
		},
		Status: domain.StatusPendingSubmission,
	}

	if err := store.StoreOrder(ctx, o); err != nil {
		t.Fatalf("store order: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStore_GetOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewPostgresStore(db)

	rows := sqlmock.NewRows([]string{
		"local_id", "broker_id", "symbol", "side", "quantity", "price", "order_type",
		"status", "time_in_force", "strategy_id", "created_at", "updated_at",
		"filled_quantity", "avg_fill_price", "order_proto",
	}).AddRow("ORD_1", "B1", "AAPL", "BUY", "10", nil, "MARKET", "SUBMITTED", "DAY", "S",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		"0", "0", []byte(`{}`))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT local_id")).
		WithArgs("ORD_1").
		WillReturnRows(rows)

	got, err := store.GetOrder(context.Background(), "ORD_1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.BrokerID != "B1" || got.Status != domain.StatusSubmitted {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestPostgresStore_GetOpenOrders(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewPostgresStore(db)

	rows := sqlmock.NewRows([]string{
		"local_id", "broker_id", "symbol", "side", "quantity", "price", "order_type",
		"status", "time_in_force", "strategy_id", "created_at", "updated_at",
		"filled_quantity", "avg_fill_price", "order_proto",
	}).AddRow("ORD_1", nil, "AAPL", "BUY", "10", nil, "MARKET", "SUBMITTED", "DAY", "S",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		"0", "0", []byte(`{}`))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT local_id")).
		WillReturnRows(rows)

	got, err := store.GetOpenOrders(context.Background())
	if err != nil {
		t.Fatalf("get open orders: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 open order, got %d", len(got))
	}
}
