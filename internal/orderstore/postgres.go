package orderstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"jax-execution-core/internal/clock"
	"jax-execution-core/internal/domain"

	"github.com/shopspring/decimal"
)

// PostgresStore stores the full order as a serialized blob alongside
// queryable columns, so schema evolution never requires re-encoding
// historical rows.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type orderBlob struct {
	domain.Order
}

func (s *PostgresStore) StoreOrder(ctx context.Context, o domain.StoredOrder) error {
	blob, err := json.Marshal(orderBlob{Order: o.Order})
	if err != nil {
		return fmt.Errorf("orderstore.store_order: marshal blob: %w", err)
	}

	now := clock.Now(ctx)
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
INSERT INTO orders (local_id, broker_id, symbol, side, quantity, price, order_type, status, time_in_force, strategy_id, created_at, updated_at, filled_quantity, avg_fill_price, order_proto)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (local_id) DO UPDATE SET
  broker_id = EXCLUDED.broker_id,
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at,
  filled_quantity = EXCLUDED.filled_quantity,
  avg_fill_price = EXCLUDED.avg_fill_price
`,
		o.LocalID, nullString(o.BrokerID), o.Symbol, string(o.Side), o.Quantity, nullDecimal(o.LimitPrice),
		string(o.Type), o.Status.String(), string(o.TIF), o.StrategyID, o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
		o.FilledQty, o.AvgFillPrice, blob,
	)
	if err != nil {
		return fmt.Errorf("orderstore.store_order: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, localID string, status domain.OrderStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE orders SET status = $1, updated_at = $2 WHERE local_id = $3`,
		status.String(), clock.Now(ctx).UTC(), localID)
	if err != nil {
		return fmt.Errorf("orderstore.update_order_status: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBrokerID(ctx context.Context, localID string, brokerID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE orders SET broker_id = $1, updated_at = $2 WHERE local_id = $3`,
		brokerID, clock.Now(ctx).UTC(), localID)
	if err != nil {
		return fmt.Errorf("orderstore.update_broker_id: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateFillInfo(ctx context.Context, localID string, cumulativeQty decimal.Decimal, avgFillPrice decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `UPDATE orders SET filled_quantity = $1, avg_fill_price = $2, updated_at = $3 WHERE local_id = $4`,
		cumulativeQty, avgFillPrice, clock.Now(ctx).UTC(), localID)
	if err != nil {
		return fmt.Errorf("orderstore.update_fill_info: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, localID string) (domain.StoredOrder, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT local_id, broker_id, symbol, side, quantity, price, order_type, status, time_in_force, strategy_id, created_at, updated_at, filled_quantity, avg_fill_price, order_proto
FROM orders WHERE local_id = $1
`, localID)
	return scanOrder(row)
}

func (s *PostgresStore) GetOpenOrders(ctx context.Context) ([]domain.StoredOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT local_id, broker_id, symbol, side, quantity, price, order_type, status, time_in_force, strategy_id, created_at, updated_at, filled_quantity, avg_fill_price, order_proto
FROM orders WHERE status IN ($1, $2, $3, $4)
`,
		domain.StatusPendingSubmission.String(),
		domain.StatusSubmitted.String(),
		domain.StatusAccepted.String(),
		domain.StatusPartiallyFilled.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("orderstore.get_open_orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *PostgresStore) GetOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.StoredOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT local_id, broker_id, symbol, side, quantity, price, order_type, status, time_in_force, strategy_id, created_at, updated_at, filled_quantity, avg_fill_price, order_proto
FROM orders WHERE status = $1
`, status.String())
	if err != nil {
		return nil, fmt.Errorf("orderstore.get_orders_by_status: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (domain.StoredOrder, error) {
	var o domain.StoredOrder
	var brokerID sql.NullString
	var price sql.NullString
	var side, orderType, status, tif string
	var blob []byte

	err := row.Scan(&o.LocalID, &brokerID, &o.Symbol, &side, &o.Quantity, &price, &orderType, &status, &tif,
		&o.StrategyID, &o.CreatedAt, &o.UpdatedAt, &o.FilledQty, &o.AvgFillPrice, &blob)
	if err != nil {
		return domain.StoredOrder{}, fmt.Errorf("orderstore: scan: %w", err)
	}

	if brokerID.Valid {
		o.BrokerID = brokerID.String
	}
	if price.Valid {
		o.LimitPrice, _ = decimal.NewFromString(price.String)
	}
	o.Side = domain.Side(side)
	o.Type = domain.OrderType(orderType)
	o.Status = parseStatus(status)
	o.TIF = domain.TimeInForce(tif)

	var b orderBlob
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &b); err != nil {
			return domain.StoredOrder{}, fmt.Errorf("orderstore: decode blob: %w", err)
		}
		o.Metadata = b.Metadata
	}

	return o, nil
}

func scanOrders(rows *sql.Rows) ([]domain.StoredOrder, error) {
	var out []domain.StoredOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orderstore: rows: %w", err)
	}
	return out, nil
}

func parseStatus(name string) domain.OrderStatus {
	for s := domain.StatusPendingSubmission; s <= domain.StatusExpired; s++ {
		if s.String() == name {
			return s
		}
	}
	return -1
}

func nullString(s string) any {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d decimal.Decimal) any {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
