package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jax-execution-core/internal/domain"
	"jax-execution-core/internal/resilience"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// HTTPBridge talks to a broker-agnostic HTTP execution bridge: a sidecar
// process (IB gateway, FIX adapter) that exposes submit / cancel / replace
// / fills as plain JSON endpoints.
type HTTPBridge struct {
	client  *resty.Client
	breaker *resilience.Breaker

	mu           sync.Mutex
	lastPollTime time.Time
}

func NewHTTPBridge(baseURL string) *HTTPBridge {
	return &HTTPBridge{
		client:       resty.New().SetBaseURL(baseURL).SetTimeout(15 * time.Second),
		breaker:      resilience.New(resilience.DefaultGatewayConfig("httpbridge")),
		lastPollTime: time.Now().UTC(),
	}
}

type bridgeOrderRequest struct {
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Quantity      string `json:"quantity"`
	LimitPrice    string `json:"limit_price,omitempty"`
	OrderType     string `json:"order_type"`
	TimeInForce   string `json:"time_in_force"`
}

type bridgeOrderResponse struct {
	Success      bool   `json:"success"`
	BrokerID     string `json:"broker_id"`
	RejectReason string `json:"reject_reason"`
}

func (h *HTTPBridge) SubmitOrder(ctx context.Context, o domain.Order) (string, error) {
	result, err := h.breaker.Execute(ctx, func() (any, error) {
		var out bridgeOrderResponse
		resp, err := h.client.R().
			SetContext(ctx).
			SetBody(bridgeOrderRequest{
				ClientOrderID: o.LocalID,
				Symbol:        o.Symbol,
				Side:          string(o.Side),
				Quantity:      o.Quantity.String(),
				LimitPrice:    limitPriceString(o),
				OrderType:     string(o.Type),
				TimeInForce:   string(o.TIF),
			}).
			SetResult(&out).
			Post("/api/v1/orders")
		if err != nil {
			return nil, fmt.Errorf("submit_order: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("submit_order: bridge returned %s", resp.Status())
		}
		return &out, nil
	})
	if err != nil {
		return "", err
	}
	out := result.(*bridgeOrderResponse)
	if !out.Success {
		return "", fmt.Errorf("bridge rejected order: %s", out.RejectReason)
	}
	return out.BrokerID, nil
}

func (h *HTTPBridge) CancelOrder(ctx context.Context, brokerID string) error {
	_, err := h.breaker.Execute(ctx, func() (any, error) {
		resp, err := h.client.R().SetContext(ctx).Delete("/api/v1/orders/" + brokerID)
		if err != nil {
			return nil, fmt.Errorf("cancel_order: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("cancel_order: bridge returned %s", resp.Status())
		}
		return nil, nil
	})
	return err
}

func (h *HTTPBridge) ReplaceOrder(ctx context.Context, brokerID string, replacement domain.Order) (string, error) {
	result, err := h.breaker.Execute(ctx, func() (any, error) {
		var out bridgeOrderResponse
		resp, err := h.client.R().
			SetContext(ctx).
			SetBody(bridgeOrderRequest{
				ClientOrderID: replacement.LocalID,
				Symbol:        replacement.Symbol,
				Side:          string(replacement.Side),
				Quantity:      replacement.Quantity.String(),
				LimitPrice:    limitPriceString(replacement),
				OrderType:     string(replacement.Type),
				TimeInForce:   string(replacement.TIF),
			}).
			SetResult(&out).
			Put("/api/v1/orders/" + brokerID)
		if err != nil {
			return nil, fmt.Errorf("replace_order: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("replace_order: bridge returned %s", resp.Status())
		}
		return &out, nil
	})
	if err != nil {
		return "", err
	}
	out := result.(*bridgeOrderResponse)
	if !out.Success {
		return "", fmt.Errorf("bridge rejected replace: %s", out.RejectReason)
	}
	return out.BrokerID, nil
}

type bridgeFill struct {
	BrokerOrderID  string          `json:"broker_order_id"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	AvgFillPrice   decimal.Decimal `json:"avg_fill_price"`
	FillTime       time.Time       `json:"fill_time"`
}

func (h *HTTPBridge) GetFills(ctx context.Context) ([]domain.ExecutionReport, error) {
	h.mu.Lock()
	since := h.lastPollTime
	h.mu.Unlock()

	result, err := h.breaker.Execute(ctx, func() (any, error) {
		var out struct {
			Fills []bridgeFill `json:"fills"`
		}
		resp, err := h.client.R().
			SetContext(ctx).
			SetQueryParam("since", since.Format(time.RFC3339Nano)).
			SetResult(&out).
			Get("/api/v1/fills")
		if err != nil {
			return nil, fmt.Errorf("get_fills: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("get_fills: bridge returned %s", resp.Status())
		}
		return out.Fills, nil
	})
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.lastPollTime = time.Now().UTC()
	h.mu.Unlock()

	fills := result.([]bridgeFill)
	out := make([]domain.ExecutionReport, 0, len(fills))
	for _, f := range fills {
		out = append(out, domain.ExecutionReport{
			BrokerOrderID:  f.BrokerOrderID,
			Symbol:         f.Symbol,
			Side:           domain.Side(f.Side),
			FilledQuantity: f.FilledQuantity,
			AvgFillPrice:   f.AvgFillPrice,
			FillTime:       f.FillTime,
		})
	}
	return out, nil
}

func limitPriceString(o domain.Order) string {
	if o.LimitPrice.IsZero() {
		return ""
	}
	return o.LimitPrice.String()
}

var _ Gateway = (*HTTPBridge)(nil)
