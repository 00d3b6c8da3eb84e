package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jax-execution-core/internal/domain"
	"jax-execution-core/internal/journal"
	"jax-execution-core/internal/observability"
	"jax-execution-core/internal/orderstore"
	"jax-execution-core/internal/position"
)

// DefaultFillPollInterval is the Engine's default background poll cadence.
const DefaultFillPollInterval = 500 * time.Millisecond

// Engine owns one order manager per strategy and runs the background
// fill-polling loop. One Engine instance per process, constructed
// explicitly at startup with its dependencies injected.
type Engine struct {
	mu       sync.RWMutex
	managers map[string]*Manager

	PollInterval time.Duration
}

// NewEngine constructs an empty Engine. Managers are registered with
// Register once their per-strategy gateway/store/journal are wired up.
func NewEngine() *Engine {
	return &Engine{
		managers:     make(map[string]*Manager),
		PollInterval: DefaultFillPollInterval,
	}
}

// Register attaches a strategy's Order Manager to the Engine.
func (e *Engine) Register(mgr *Manager) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.managers[mgr.StrategyID] = mgr
}

func (e *Engine) manager(strategyID string) (*Manager, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	mgr, ok := e.managers[strategyID]
	if !ok {
		return nil, domain.NewError(domain.ErrState, "unknown strategy: %s", strategyID)
	}
	return mgr, nil
}

// allManagers returns a snapshot of every registered manager, in map
// iteration order (not stable between calls).
func (e *Engine) allManagers() []*Manager {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Manager, 0, len(e.managers))
	for _, mgr := range e.managers {
		out = append(out, mgr)
	}
	return out
}

// SubmitSignal dispatches a StrategySignal to its strategy's order manager.
// An unregistered strategy is a State error.
func (e *Engine) SubmitSignal(ctx context.Context, sig domain.StrategySignal) (string, error) {
	mgr, err := e.manager(sig.StrategyID)
	if err != nil {
		return "", err
	}
	return mgr.ProcessSignal(ctx, sig)
}

// CancelOrder dispatches a CancelSignal to its strategy's order manager.
func (e *Engine) CancelOrder(ctx context.Context, sig domain.CancelSignal) error {
	mgr, err := e.manager(sig.StrategyID)
	if err != nil {
		return err
	}
	return mgr.ProcessCancel(ctx, sig)
}

// ReplaceOrder dispatches a ReplaceSignal to its strategy's order manager.
func (e *Engine) ReplaceOrder(ctx context.Context, sig domain.ReplaceSignal) (string, error) {
	mgr, err := e.manager(sig.StrategyID)
	if err != nil {
		return "", err
	}
	return mgr.ProcessReplace(ctx, sig)
}

// GetPosition returns the combined position for symbol across every
// strategy.
func (e *Engine) GetPosition(symbol string) domain.Position {
	keepers := e.keepers()
	combined := position.AggregateAcrossStrategies(keepers)
	for _, p := range combined {
		if p.Symbol == symbol {
			return p
		}
	}
	return domain.Position{Symbol: symbol}
}

// GetAllPositions returns the combined position list across every strategy.
func (e *Engine) GetAllPositions() []domain.Position {
	return position.AggregateAcrossStrategies(e.keepers())
}

func (e *Engine) keepers() []*position.Keeper {
	mgrs := e.allManagers()
	out := make([]*position.Keeper, 0, len(mgrs))
	for _, mgr := range mgrs {
		out = append(out, mgr.positions)
	}
	return out
}

// ActivateKillSwitch sweeps every registered strategy's open orders,
// continuing past any single strategy's failure.
func (e *Engine) ActivateKillSwitch(ctx context.Context, reason, initiatedBy string) error {
	var firstErr error
	for _, mgr := range e.allManagers() {
		if err := mgr.CancelAll(ctx, reason, initiatedBy); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run drives the background fill-poll loop until ctx is cancelled, calling
// ProcessFills on every manager in sequence each tick. A single goroutine
// runs this loop, so fill processing never races with itself.
func (e *Engine) Run(ctx context.Context) {
	interval := e.PollInterval
	if interval <= 0 {
		interval = DefaultFillPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, mgr := range e.allManagers() {
				if err := mgr.ProcessFills(ctx); err != nil {
					observability.LogEvent(ctx, "error", "fill_poll_failed", map[string]any{
						"strategy_id": mgr.StrategyID, "error": err.Error(),
					})
				}
			}
		}
	}
}

// Recover replays startup state for one strategy after a restart: open
// orders are read back from the store, their id mappings are restored
// in the in-memory ID Mapper, and any PENDING_SUBMISSION order with no
// corresponding ORDER_SUBMITTED journal entry is marked REJECTED with
// "crash during submission": it never reached the gateway before the
// process died.
func Recover(ctx context.Context, strategyID string, store orderstore.Store, j journal.Journal, mapper interface {
	Add(local, broker string)
}) error {
	open, err := store.GetOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("recovery: list open orders for %s: %w", strategyID, err)
	}

	for _, o := range open {
		if o.StrategyID != strategyID {
			continue
		}

		if o.BrokerID != "" {
			mapper.Add(o.LocalID, o.BrokerID)
		}

		if o.Status != domain.StatusPendingSubmission {
			continue
		}

		history, err := j.GetOrderHistory(ctx, o.LocalID)
		if err != nil {
			return fmt.Errorf("recovery: order history for %s: %w", o.LocalID, err)
		}

		submitted := false
		for _, entry := range history {
			if entry.EventType == domain.EventOrderSubmitted {
				submitted = true
				break
			}
		}

		if !submitted {
			if err := store.UpdateOrderStatus(ctx, o.LocalID, domain.StatusRejected); err != nil {
				return fmt.Errorf("recovery: reject %s: %w", o.LocalID, err)
			}
			_ = j.Log(ctx, domain.EventOrderRejected, `{"reason":"crash during submission"}`, o.LocalID)
			observability.LogEvent(ctx, "warn", "recovered_crash_during_submission", map[string]any{"local_id": o.LocalID})
		}
	}

	return nil
}
