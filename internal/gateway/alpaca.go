package gateway

import (
	"context"
	"fmt"
	"time"

	"jax-execution-core/internal/domain"
	"jax-execution-core/internal/resilience"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
)

// Alpaca is a real execution gateway on top of Alpaca's trading API.
// Every call is wrapped in a circuit breaker so a broker outage trips
// instead of stalling the fill-poll loop.
type Alpaca struct {
	client  *alpaca.Client
	breaker *resilience.Breaker

	// lastPollTime bounds GetFills to orders with activity since the
	// previous call.
	lastPollTime time.Time
}

func NewAlpaca(client *alpaca.Client) *Alpaca {
	return &Alpaca{
		client:       client,
		breaker:      resilience.New(resilience.DefaultGatewayConfig("alpaca")),
		lastPollTime: time.Now().UTC(),
	}
}

func (a *Alpaca) SubmitOrder(ctx context.Context, o domain.Order) (string, error) {
	result, err := a.breaker.Execute(ctx, func() (any, error) {
		req := alpaca.PlaceOrderRequest{
			Symbol:        o.Symbol,
			Qty:           decPtr(o.Quantity),
			Side:          alpacaSide(o.Side),
			Type:          alpacaOrderType(o.Type),
			TimeInForce:   alpacaTIF(o.TIF),
			ClientOrderID: o.LocalID,
		}
		if o.Type == domain.OrderTypeLimit || o.Type == domain.OrderTypeStopLimit {
			req.LimitPrice = decPtr(o.LimitPrice)
		}
		return a.client.PlaceOrder(req)
	})
	if err != nil {
		return "", fmt.Errorf("alpaca submit_order: %w", err)
	}
	order := result.(*alpaca.Order)
	return order.ID, nil
}

func (a *Alpaca) CancelOrder(ctx context.Context, brokerID string) error {
	_, err := a.breaker.Execute(ctx, func() (any, error) {
		return nil, a.client.CancelOrder(brokerID)
	})
	if err != nil {
		return fmt.Errorf("alpaca cancel_order: %w", err)
	}
	return nil
}

func (a *Alpaca) ReplaceOrder(ctx context.Context, brokerID string, replacement domain.Order) (string, error) {
	qty := decPtr(replacement.Quantity)
	result, err := a.breaker.Execute(ctx, func() (any, error) {
		return a.client.ReplaceOrder(brokerID, alpaca.ReplaceOrderRequest{
			Qty:         qty,
			LimitPrice:  decPtr(replacement.LimitPrice),
			TimeInForce: alpacaTIF(replacement.TIF),
		})
	})
	if err != nil {
		return "", fmt.Errorf("alpaca replace_order: %w", err)
	}
	order := result.(*alpaca.Order)
	return order.ID, nil
}

func (a *Alpaca) GetFills(ctx context.Context) ([]domain.ExecutionReport, error) {
	since := a.lastPollTime
	result, err := a.breaker.Execute(ctx, func() (any, error) {
		return a.client.GetOrders(alpaca.GetOrdersRequest{
			Status: "all",
			After:  since,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca get_fills: %w", err)
	}
	a.lastPollTime = time.Now().UTC()

	orders := result.([]alpaca.Order)
	reports := make([]domain.ExecutionReport, 0, len(orders))
	for _, o := range orders {
		if o.FilledQty.IsZero() {
			continue
		}
		reports = append(reports, domain.ExecutionReport{
			BrokerOrderID:  o.ID,
			Symbol:         o.Symbol,
			Side:           domain.Side(o.Side),
			FilledQuantity: o.FilledQty,
			AvgFillPrice:   avgFillPrice(o),
			FillTime:       fillTime(o),
		})
	}
	return reports, nil
}

func decPtr(d decimal.Decimal) *decimal.Decimal {
	if d.IsZero() {
		return nil
	}
	v := d
	return &v
}

func alpacaSide(s domain.Side) alpaca.Side {
	if s == domain.SideSell {
		return alpaca.Sell
	}
	return alpaca.Buy
}

func alpacaOrderType(t domain.OrderType) alpaca.OrderType {
	switch t {
	case domain.OrderTypeLimit:
		return alpaca.Limit
	case domain.OrderTypeStop:
		return alpaca.Stop
	case domain.OrderTypeStopLimit:
		return alpaca.StopLimit
	default:
		return alpaca.Market
	}
}

func alpacaTIF(tif domain.TimeInForce) alpaca.TimeInForce {
	switch tif {
	case domain.TIFGTC:
		return alpaca.GTC
	case domain.TIFIOC:
		return alpaca.IOC
	case domain.TIFFOK:
		return alpaca.FOK
	default:
		return alpaca.Day
	}
}

func avgFillPrice(o alpaca.Order) decimal.Decimal {
	if o.FilledAvgPrice != nil {
		return *o.FilledAvgPrice
	}
	return decimal.Zero
}

func fillTime(o alpaca.Order) time.Time {
	if o.FilledAt != nil {
		return *o.FilledAt
	}
	return o.UpdatedAt
}

var _ Gateway = (*Alpaca)(nil)
