// Package execution implements the order manager and engine: the
// signal-to-terminal-order state machine, one manager instance per strategy,
// covering submit, cancel, replace, fill reconciliation and the kill switch.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"jax-execution-core/internal/clock"
	"jax-execution-core/internal/domain"
	"jax-execution-core/internal/gateway"
	"jax-execution-core/internal/idmap"
	"jax-execution-core/internal/journal"
	"jax-execution-core/internal/observability"
	"jax-execution-core/internal/orderstore"
	"jax-execution-core/internal/position"

	"github.com/hashicorp/go-multierror"
)

// cancelGrace is how long a CANCELLED order's id mapping is retained after
// cancellation, so late fills can still resolve to a local id. Expired
// entries are swept at the top of each ProcessFills poll.
const cancelGrace = 30 * time.Second

// Manager is the order manager for a single strategy. It orchestrates the Journal, Order Store, ID Mapper, Position Keeper and
// Execution Gateway for every signal belonging to its strategy.
type Manager struct {
	StrategyID string

	gw        gateway.Gateway
	store     orderstore.Store
	journal   journal.Journal
	mapper    *idmap.Mapper
	positions *position.Keeper
	ids       *domain.IDGenerator
	clk       clock.Clock

	mu          sync.Mutex
	cancelledAt map[string]time.Time // local id -> time entered CANCELLED, pending sweep
}

// NewManager wires a Manager for one strategy. Every dependency is an
// interface or a narrow struct so tests can substitute in-memory fakes
// without touching the wiring here.
func NewManager(strategyID string, gw gateway.Gateway, store orderstore.Store, j journal.Journal, mapper *idmap.Mapper, positions *position.Keeper) *Manager {
	return &Manager{
		StrategyID:  strategyID,
		gw:          gw,
		store:       store,
		journal:     j,
		mapper:      mapper,
		positions:   positions,
		ids:         domain.NewIDGenerator(),
		clk:         clock.SystemClock{},
		cancelledAt: make(map[string]time.Time),
	}
}

// WithClock overrides the manager's time source (tests only).
func (m *Manager) WithClock(c clock.Clock) *Manager {
	m.clk = c
	return m
}

func (m *Manager) now() time.Time { return m.clk.Now() }

// ProcessSignal turns a StrategySignal into an order: build, journal, persist
// pending, submit to the gateway, then record the outcome.
func (m *Manager) ProcessSignal(ctx context.Context, sig domain.StrategySignal) (string, error) {
	if err := domain.ValidateSignal(sig); err != nil {
		return "", err
	}

	localID := m.ids.Next()
	order := domain.Order{
		LocalID:    localID,
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Quantity:   sig.TargetQuantity,
		Type:       domain.OrderTypeMarket,
		TIF:        domain.TIFDay,
		StrategyID: sig.StrategyID,
		CreatedAt:  m.now(),
		Metadata:   sig.Metadata,
	}

	m.logJournal(ctx, domain.EventOrderCreated, localID, map[string]any{
		"symbol": order.Symbol, "side": string(order.Side), "quantity": order.Quantity.String(),
	})

	stored := domain.StoredOrder{Order: order, Status: domain.StatusPendingSubmission, CreatedAt: order.CreatedAt, UpdatedAt: order.CreatedAt}
	if err := m.store.StoreOrder(ctx, stored); err != nil {
		// Persistence failure before gateway submission: abort, nothing to
		// roll back yet.
		perr := domain.WrapError(domain.ErrPersistence, err, "failed to persist pending order %s", localID)
		m.logError(ctx, localID, perr)
		return "", perr
	}

	// Risk check extension point: a future policy gate would run here,
	// before the order ever reaches the gateway.

	brokerID, err := m.gw.SubmitOrder(ctx, order)
	if err != nil {
		gerr := domain.WrapError(domain.ErrGateway, err, "gateway rejected order %s", localID)
		if serr := m.store.UpdateOrderStatus(ctx, localID, domain.StatusRejected); serr != nil {
			m.logError(ctx, localID, domain.WrapError(domain.ErrPersistence, serr, "failed to mark %s rejected", localID))
		}
		m.logJournal(ctx, domain.EventOrderRejected, localID, map[string]any{"reason": err.Error()})
		return "", gerr
	}

	m.mapper.Add(localID, brokerID)

	if err := m.store.UpdateBrokerID(ctx, localID, brokerID); err != nil {
		// The store write describing the broker id failed: the mapper entry
		// doesn't correspond to anything durable yet, so it is rolled back.
		m.mapper.Remove(localID)
		perr := domain.WrapError(domain.ErrPersistence, err, "failed to persist broker id for %s", localID)
		m.logError(ctx, localID, perr)
		return "", perr
	}

	m.logJournal(ctx, domain.EventOrderSubmitted, localID, map[string]any{"broker_id": brokerID})

	if err := m.store.UpdateOrderStatus(ctx, localID, domain.StatusSubmitted); err != nil {
		// The broker already accepted the order and the mapping is durable;
		// the error is journaled and surfaced but the mapping is kept so
		// fills can still be reconciled against the live broker order even
		// though the local status column lags reality.
		perr := domain.WrapError(domain.ErrPersistence, err, "failed to mark %s submitted", localID)
		m.logError(ctx, localID, perr)
		return localID, perr
	}

	return localID, nil
}

// ProcessCancel resolves the order's broker id and cancels it at the
// gateway. The mapping is retained for cancelGrace so late fills can still
// be reconciled.
func (m *Manager) ProcessCancel(ctx context.Context, sig domain.CancelSignal) error {
	if err := domain.ValidateCancel(sig); err != nil {
		return err
	}

	brokerID, ok := m.mapper.GetBroker(sig.OrderID)
	if !ok {
		return domain.NewError(domain.ErrState, "cancel: order not found: %s", sig.OrderID)
	}

	if err := m.gw.CancelOrder(ctx, brokerID); err != nil {
		return domain.WrapError(domain.ErrGateway, err, "gateway rejected cancel for %s", sig.OrderID)
	}

	if err := m.store.UpdateOrderStatus(ctx, sig.OrderID, domain.StatusCancelled); err != nil {
		perr := domain.WrapError(domain.ErrPersistence, err, "failed to mark %s cancelled", sig.OrderID)
		m.logError(ctx, sig.OrderID, perr)
		return perr
	}
	m.logJournal(ctx, domain.EventOrderCancelled, sig.OrderID, nil)

	m.mu.Lock()
	m.cancelledAt[sig.OrderID] = m.now()
	m.mu.Unlock()

	return nil
}

// ProcessReplace cancels the old order at the broker in favor of a new one,
// minting a fresh local id for the replacement.
func (m *Manager) ProcessReplace(ctx context.Context, sig domain.ReplaceSignal) (string, error) {
	if err := domain.ValidateReplace(sig); err != nil {
		return "", err
	}

	oldBrokerID, ok := m.mapper.GetBroker(sig.OrderID)
	if !ok {
		return "", domain.NewError(domain.ErrState, "replace: order not found: %s", sig.OrderID)
	}

	newLocalID := m.ids.Next()
	replacement := domain.Order{
		LocalID:    newLocalID,
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Quantity:   sig.TargetQuantity,
		Type:       domain.OrderTypeMarket,
		TIF:        domain.TIFDay,
		StrategyID: sig.StrategyID,
		CreatedAt:  m.now(),
	}

	m.logJournal(ctx, domain.EventOrderReplaced, sig.OrderID, map[string]any{"new_local_id": newLocalID})

	newBrokerID, err := m.gw.ReplaceOrder(ctx, oldBrokerID, replacement)
	if err != nil {
		return "", domain.WrapError(domain.ErrGateway, err, "gateway rejected replace for %s", sig.OrderID)
	}

	if err := m.store.UpdateOrderStatus(ctx, sig.OrderID, domain.StatusReplaced); err != nil {
		perr := domain.WrapError(domain.ErrPersistence, err, "failed to mark %s replaced", sig.OrderID)
		m.logError(ctx, sig.OrderID, perr)
		return "", perr
	}

	now := replacement.CreatedAt
	stored := domain.StoredOrder{Order: replacement, Status: domain.StatusSubmitted, CreatedAt: now, UpdatedAt: now}
	stored.BrokerID = newBrokerID
	if err := m.store.StoreOrder(ctx, stored); err != nil {
		perr := domain.WrapError(domain.ErrPersistence, err, "failed to persist replacement order %s", newLocalID)
		m.logError(ctx, newLocalID, perr)
		return "", perr
	}

	m.mapper.Remove(sig.OrderID)
	m.mapper.Add(newLocalID, newBrokerID)

	return newLocalID, nil
}

// ProcessFills asks the gateway for every new fill since the last poll and
// reconciles each one against the store and the position keeper. Reports
// carry cumulative quantities; the delta since the last known fill is what
// reaches the position keeper.
func (m *Manager) ProcessFills(ctx context.Context) error {
	m.sweepCancelled()

	reports, err := m.gw.GetFills(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrGateway, err, "get_fills failed for strategy %s", m.StrategyID)
	}

	for _, report := range reports {
		m.applyFill(ctx, report)
	}
	return nil
}

func (m *Manager) applyFill(ctx context.Context, report domain.ExecutionReport) {
	localID, ok := m.mapper.GetLocal(report.BrokerOrderID)
	if !ok {
		m.logJournal(ctx, domain.EventErrorOccurred, report.BrokerOrderID, map[string]any{
			"error": "unknown broker id in fill report",
		})
		return
	}

	stored, err := m.store.GetOrder(ctx, localID)
	if err != nil {
		m.logError(ctx, localID, domain.WrapError(domain.ErrPersistence, err, "failed to load order %s for fill", localID))
		return
	}

	if report.FilledQuantity.LessThanOrEqual(stored.FilledQty) {
		// Duplicate or stale report: ignore.
		return
	}

	delta := report.FilledQuantity.Sub(stored.FilledQty)

	if err := m.store.UpdateFillInfo(ctx, localID, report.FilledQuantity, report.AvgFillPrice); err != nil {
		m.logError(ctx, localID, domain.WrapError(domain.ErrPersistence, err, "failed to update fill info for %s", localID))
		return
	}

	terminal := report.FilledQuantity.GreaterThanOrEqual(stored.Quantity)
	newStatus := domain.StatusPartiallyFilled
	event := domain.EventOrderPartiallyFilled
	if terminal {
		newStatus = domain.StatusFilled
		event = domain.EventOrderFilled
	}

	if err := m.store.UpdateOrderStatus(ctx, localID, newStatus); err != nil {
		m.logError(ctx, localID, domain.WrapError(domain.ErrPersistence, err, "failed to update status for %s", localID))
		return
	}

	// OnFill takes the price of this increment, not the broker's cumulative
	// average: back it out of the previous and new cumulative averages.
	fillPrice := report.AvgFillPrice
	if stored.FilledQty.IsPositive() && stored.AvgFillPrice.IsPositive() && report.AvgFillPrice.IsPositive() {
		fillPrice = report.FilledQuantity.Mul(report.AvgFillPrice).
			Sub(stored.FilledQty.Mul(stored.AvgFillPrice)).Div(delta)
	}
	m.positions.OnFill(report.Symbol, delta, fillPrice, report.Side)

	m.logJournal(ctx, event, localID, map[string]any{
		"cumulative_qty": report.FilledQuantity.String(),
		"avg_fill_price": report.AvgFillPrice.String(),
	})

	if terminal {
		m.mapper.Remove(localID)
		m.mu.Lock()
		delete(m.cancelledAt, localID)
		m.mu.Unlock()
	}
}

// sweepCancelled drops the id mapping for any CANCELLED order whose grace
// period has elapsed, so a broker id that will never report again doesn't
// pin memory forever.
func (m *Manager) sweepCancelled() {
	now := m.now()
	m.mu.Lock()
	var expired []string
	for localID, at := range m.cancelledAt {
		if now.Sub(at) >= cancelGrace {
			expired = append(expired, localID)
		}
	}
	for _, localID := range expired {
		delete(m.cancelledAt, localID)
	}
	m.mu.Unlock()

	for _, localID := range expired {
		m.mapper.Remove(localID)
	}
}

// CancelAll is the kill switch: journal the activation, then best-effort
// cancel every open order, continuing past individual gateway failures.
func (m *Manager) CancelAll(ctx context.Context, reason, initiatedBy string) error {
	m.logJournal(ctx, domain.EventKillSwitchActivated, m.StrategyID, map[string]any{
		"reason": reason, "initiated_by": initiatedBy,
	})

	open, err := m.store.GetOpenOrders(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, err, "failed to list open orders for strategy %s", m.StrategyID)
	}

	var errs *multierror.Error
	for _, o := range open {
		if o.StrategyID != m.StrategyID {
			continue
		}
		if o.BrokerID == "" {
			continue
		}

		if err := m.gw.CancelOrder(ctx, o.BrokerID); err != nil {
			m.logJournal(ctx, domain.EventErrorOccurred, o.LocalID, map[string]any{"error": err.Error(), "during": "cancel_all"})
			errs = multierror.Append(errs, fmt.Errorf("cancel %s: %w", o.LocalID, err))
			continue
		}

		if err := m.store.UpdateOrderStatus(ctx, o.LocalID, domain.StatusCancelled); err != nil {
			m.logError(ctx, o.LocalID, domain.WrapError(domain.ErrPersistence, err, "failed to mark %s cancelled during sweep", o.LocalID))
			errs = multierror.Append(errs, err)
			continue
		}
		m.logJournal(ctx, domain.EventOrderCancelled, o.LocalID, map[string]any{"via": "kill_switch"})
		m.mapper.Remove(o.LocalID)
	}

	return errs.ErrorOrNil()
}

// GetPosition returns a snapshot of a single symbol's position.
func (m *Manager) GetPosition(symbol string) domain.Position {
	return m.positions.Get(symbol)
}

// GetAllPositions returns a snapshot of every known position for this
// strategy.
func (m *Manager) GetAllPositions() []domain.Position {
	return m.positions.All()
}

func (m *Manager) logJournal(ctx context.Context, event domain.JournalEvent, correlationID string, fields map[string]any) {
	data := ""
	if fields != nil {
		if raw, err := json.Marshal(fields); err == nil {
			data = string(raw)
		}
	}
	if err := m.journal.Log(ctx, event, data, correlationID); err != nil {
		observability.LogEvent(ctx, "error", "journal_write_failed", map[string]any{
			"event": event.String(), "correlation_id": correlationID, "error": err.Error(),
		})
	}
	observability.LogOrderEvent(ctx, event.String(), correlationID, fields)
}

func (m *Manager) logError(ctx context.Context, correlationID string, err *domain.Error) {
	m.logJournal(ctx, domain.EventErrorOccurred, correlationID, map[string]any{"error": err.Error(), "type": string(err.Type)})
}
