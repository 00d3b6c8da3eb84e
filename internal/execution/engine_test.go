package execution

import (
	"context"
	"testing"

	"jax-execution-core/internal/domain"
	"jax-execution-core/internal/gateway"
	"jax-execution-core/internal/idmap"
	"jax-execution-core/internal/position"
)

func newRegisteredEngine(t *testing.T, strategyIDs ...string) (*Engine, map[string]*memStore, map[string]*memJournal) {
	t.Helper()
	eng := NewEngine()
	stores := make(map[string]*memStore)
	journals := make(map[string]*memJournal)
	for _, id := range strategyIDs {
		store := newMemStore()
		j := newMemJournal()
		mgr := NewManager(id, gateway.NewPaper(), store, j, idmap.New(), position.NewKeeper())
		eng.Register(mgr)
		stores[id] = store
		journals[id] = j
	}
	return eng, stores, journals
}

func TestEngine_SubmitSignal_DispatchesByStrategyID(t *testing.T) {
	eng, stores, _ := newRegisteredEngine(t, "strat-1", "strat-2")
	ctx := context.Background()

	localID, err := eng.SubmitSignal(ctx, domain.StrategySignal{
		StrategyID: "strat-2", Symbol: "AAPL", Side: domain.SideBuy, TargetQuantity: d("5"),
	})
	if err != nil {
		t.Fatalf("submit signal: %v", err)
	}

	if _, err := stores["strat-2"].GetOrder(ctx, localID); err != nil {
		t.Fatalf("expected order stored under strat-2: %v", err)
	}
	if _, err := stores["strat-1"].GetOrder(ctx, localID); err == nil {
		t.Fatalf("order should not have reached strat-1's store")
	}
}

func TestEngine_SubmitSignal_UnknownStrategyReturnsStateError(t *testing.T) {
	eng, _, _ := newRegisteredEngine(t, "strat-1")
	_, err := eng.SubmitSignal(context.Background(), domain.StrategySignal{
		StrategyID: "ghost", Symbol: "AAPL", Side: domain.SideBuy, TargetQuantity: d("5"),
	})
	if !domain.IsType(err, domain.ErrState) {
		t.Fatalf("expected state error for unknown strategy, got %v", err)
	}
}

func TestEngine_GetPosition_AggregatesAcrossStrategies(t *testing.T) {
	eng, _, _ := newRegisteredEngine(t, "strat-1", "strat-2")
	ctx := context.Background()

	for _, strategyID := range []string{"strat-1", "strat-2"} {
		_, err := eng.SubmitSignal(ctx, domain.StrategySignal{
			StrategyID: strategyID, Symbol: "AAPL", Side: domain.SideBuy, TargetQuantity: d("10"),
		})
		if err != nil {
			t.Fatalf("submit signal for %s: %v", strategyID, err)
		}
	}

	mgr1, _ := eng.manager("strat-1")
	mgr2, _ := eng.manager("strat-2")
	if err := mgr1.ProcessFills(ctx); err != nil {
		t.Fatalf("process fills 1: %v", err)
	}
	if err := mgr2.ProcessFills(ctx); err != nil {
		t.Fatalf("process fills 2: %v", err)
	}

	pos := eng.GetPosition("AAPL")
	if !pos.SignedQuantity.Equal(d("20")) {
		t.Fatalf("expected aggregated qty 20, got %s", pos.SignedQuantity)
	}
}

func TestEngine_ActivateKillSwitch_FansOutToEveryStrategy(t *testing.T) {
	eng, stores, journals := newRegisteredEngine(t, "strat-1", "strat-2")
	ctx := context.Background()

	id1, err := eng.SubmitSignal(ctx, domain.StrategySignal{StrategyID: "strat-1", Symbol: "AAPL", Side: domain.SideBuy, TargetQuantity: d("5")})
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	id2, err := eng.SubmitSignal(ctx, domain.StrategySignal{StrategyID: "strat-2", Symbol: "MSFT", Side: domain.SideBuy, TargetQuantity: d("3")})
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}

	if err := eng.ActivateKillSwitch(ctx, "operator stop", "ops@desk"); err != nil {
		t.Fatalf("kill switch: %v", err)
	}

	stored1, _ := stores["strat-1"].GetOrder(ctx, id1)
	if stored1.Status != domain.StatusCancelled {
		t.Fatalf("expected strat-1's order cancelled, got %s", stored1.Status)
	}
	stored2, _ := stores["strat-2"].GetOrder(ctx, id2)
	if stored2.Status != domain.StatusCancelled {
		t.Fatalf("expected strat-2's order cancelled, got %s", stored2.Status)
	}

	for _, id := range []string{"strat-1", "strat-2"} {
		if journals[id].countEvents(domain.EventKillSwitchActivated) != 1 {
			t.Fatalf("expected kill switch journaled for %s", id)
		}
	}
}

func TestRecover_MarksOrphanedPendingSubmissionAsRejected(t *testing.T) {
	store := newMemStore()
	j := newMemJournal()
	ctx := context.Background()

	// Simulates a crash between StoreOrder and the gateway call returning:
	// the order is PENDING_SUBMISSION and no ORDER_SUBMITTED entry ever
	// made it into the journal.
	orphan := domain.StoredOrder{
		Order:  domain.Order{LocalID: "ORD_orphan", Symbol: "AAPL", Side: domain.SideBuy, StrategyID: "strat-1"},
		Status: domain.StatusPendingSubmission,
	}
	if err := store.StoreOrder(ctx, orphan); err != nil {
		t.Fatalf("seed orphan: %v", err)
	}

	// A second order that did reach the gateway before the crash.
	submitted := domain.StoredOrder{
		Order:  domain.Order{LocalID: "ORD_live", BrokerID: "BRK_1", Symbol: "AAPL", Side: domain.SideBuy, StrategyID: "strat-1"},
		Status: domain.StatusPendingSubmission,
	}
	if err := store.StoreOrder(ctx, submitted); err != nil {
		t.Fatalf("seed submitted: %v", err)
	}
	if err := j.Log(ctx, domain.EventOrderSubmitted, "", "ORD_live"); err != nil {
		t.Fatalf("seed journal: %v", err)
	}

	mapper := idmap.New()
	if err := Recover(ctx, "strat-1", store, j, mapper); err != nil {
		t.Fatalf("recover: %v", err)
	}

	orphanAfter, _ := store.GetOrder(ctx, "ORD_orphan")
	if orphanAfter.Status != domain.StatusRejected {
		t.Fatalf("expected orphan order REJECTED, got %s", orphanAfter.Status)
	}

	liveAfter, _ := store.GetOrder(ctx, "ORD_live")
	if liveAfter.Status != domain.StatusPendingSubmission {
		t.Fatalf("expected submitted order left untouched, got %s", liveAfter.Status)
	}
	if broker, ok := mapper.GetBroker("ORD_live"); !ok || broker != "BRK_1" {
		t.Fatalf("expected id mapping restored for ORD_live, got %q ok=%v", broker, ok)
	}
}
