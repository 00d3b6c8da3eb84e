package observability

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"
)

var logger = log.New(os.Stdout, "", 0)

// LogEvent writes a structured JSON line: a correlation envelope pulled from
// ctx, overlaid with caller-supplied fields.
func LogEvent(ctx context.Context, level string, event string, fields map[string]any) {
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"event": event,
	}

	info := CorrelationFromContext(ctx)
	if info.FlowID != "" {
		payload["flow_id"] = info.FlowID
	}
	if info.StrategyID != "" {
		payload["strategy_id"] = info.StrategyID
	}
	if info.Symbol != "" {
		payload["symbol"] = info.Symbol
	}

	for key, value := range fields {
		payload[key] = value
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("{\"level\":\"error\",\"event\":\"log_marshal_failed\",\"error\":%q}", err.Error())
		return
	}
	logger.Print(string(raw))
}

// LogOrderEvent is a convenience wrapper used throughout the Order Manager.
func LogOrderEvent(ctx context.Context, event string, localID string, fields map[string]any) {
	merged := map[string]any{"local_id": localID}
	for k, v := range fields {
		merged[k] = v
	}
	LogEvent(ctx, "info", event, merged)
}
