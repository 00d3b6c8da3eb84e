// Package resilience wraps outbound execution-gateway calls with a circuit
// breaker.
package resilience

import (
	"context"
	"fmt"
	"time"

	"jax-execution-core/internal/observability"

	"github.com/sony/gobreaker/v2"
)

// Config defines the breaker's trip/reset thresholds.
type Config struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	MaxFailures   uint32
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultGatewayConfig returns defaults tuned for broker submit/cancel/
// replace/poll calls: a single bad broker round-trip shouldn't trip the
// breaker, but sustained failure should stop hammering a dead gateway.
func DefaultGatewayConfig(name string) Config {
	return Config{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		MaxFailures: 5,
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.LogEvent(context.Background(), "warn", "gateway_circuit_state_changed", map[string]any{
				"gateway": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	}
}

// Breaker wraps gobreaker with logging and a gateway-oriented trip policy.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	config Config
}

func New(config Config) *Breaker {
	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && (counts.ConsecutiveFailures >= config.MaxFailures || failureRatio >= 0.6)
		},
		OnStateChange: config.OnStateChange,
	}

	return &Breaker{
		cb:     gobreaker.NewCircuitBreaker[any](settings),
		name:   config.Name,
		config: config,
	}
}

// Execute runs fn under circuit-breaker protection, respecting ctx
// cancellation before issuing the call.
func (b *Breaker) Execute(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := b.cb.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("circuit breaker %s: %w", b.name, err)
	}
	return result, nil
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }
func (b *Breaker) Name() string           { return b.name }
