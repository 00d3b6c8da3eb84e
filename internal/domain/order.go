package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the order's execution style.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// TimeInForce controls how long an order remains working.
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
	TIFFOK TimeInForce = "FOK"
)

// OrderStatus is a node in the order lifecycle DAG. Transitions are
// forward-only; terminal states admit no further transitions. The numeric
// values are part of the persisted encoding and must not be reordered.
type OrderStatus int

const (
	StatusPendingSubmission OrderStatus = iota
	StatusSubmitted
	StatusAccepted
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusReplaced
	StatusRejected
	StatusExpired
)

func (s OrderStatus) String() string {
	switch s {
	case StatusPendingSubmission:
		return "PENDING_SUBMISSION"
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusReplaced:
		return "REPLACED"
	case StatusRejected:
		return "REJECTED"
	case StatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transitions are possible from s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired, StatusReplaced:
		return true
	default:
		return false
	}
}

// Open reports whether an order in status s still counts against open-order
// queries.
func (s OrderStatus) Open() bool {
	switch s {
	case StatusPendingSubmission, StatusSubmitted, StatusAccepted, StatusPartiallyFilled:
		return true
	default:
		return false
	}
}

// Order is intent + identity: the immutable request to the broker, before
// any fill accounting is layered on top by StoredOrder.
type Order struct {
	LocalID    string
	BrokerID   string // empty until the gateway accepts
	Symbol     string
	Side       Side
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal // zero value means "not set"
	Type       OrderType
	TIF        TimeInForce
	StrategyID string
	CreatedAt  time.Time
	Metadata   map[string]string
}

// StoredOrder is an Order plus the mutable fill-accounting state the order
// store persists.
type StoredOrder struct {
	Order
	Status       OrderStatus
	FilledQty    decimal.Decimal
	AvgFillPrice decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Remaining returns the unfilled quantity.
func (o StoredOrder) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQty)
}

// ExecutionReport is a broker-originated fill notification. FilledQuantity
// is cumulative, as reported by the broker.
type ExecutionReport struct {
	BrokerOrderID  string
	Symbol         string
	Side           Side
	FilledQuantity decimal.Decimal
	AvgFillPrice   decimal.Decimal
	FillTime       time.Time
}
