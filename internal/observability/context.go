// Package observability provides structured JSON event logging and
// context-propagated correlation ids.
package observability

import "context"

type contextKey string

const (
	flowIDKey     contextKey = "flow_id"
	strategyIDKey contextKey = "strategy_id"
	symbolKey     contextKey = "symbol"
)

// CorrelationInfo carries trace identifiers through a request context.
// FlowID identifies one signal submitted over HTTP; it is present only on
// contexts derived from that submit request, so fill processing in the
// poll loop does not carry it.
type CorrelationInfo struct {
	FlowID     string
	StrategyID string
	Symbol     string
}

func WithCorrelation(ctx context.Context, info CorrelationInfo) context.Context {
	if info.FlowID != "" {
		ctx = context.WithValue(ctx, flowIDKey, info.FlowID)
	}
	if info.StrategyID != "" {
		ctx = context.WithValue(ctx, strategyIDKey, info.StrategyID)
	}
	if info.Symbol != "" {
		ctx = context.WithValue(ctx, symbolKey, info.Symbol)
	}
	return ctx
}

func CorrelationFromContext(ctx context.Context) CorrelationInfo {
	info := CorrelationInfo{}
	if v, ok := ctx.Value(flowIDKey).(string); ok {
		info.FlowID = v
	}
	if v, ok := ctx.Value(strategyIDKey).(string); ok {
		info.StrategyID = v
	}
	if v, ok := ctx.Value(symbolKey).(string); ok {
		info.Symbol = v
	}
	return info
}

// WithFlowID attaches a flow_id to the context.
func WithFlowID(ctx context.Context, flowID string) context.Context {
	if flowID == "" {
		return ctx
	}
	return context.WithValue(ctx, flowIDKey, flowID)
}

func FlowIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(flowIDKey).(string); ok {
		return v
	}
	return ""
}
