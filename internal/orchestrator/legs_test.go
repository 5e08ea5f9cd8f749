package orchestrator

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vilenarios/token-swapper/internal/domain"
	"github.com/vilenarios/token-swapper/internal/execution"
)

func testClock() func() time.Time {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestLegCollectorUpsert(t *testing.T) {
	c := newLegCollector(testClock(), zap.NewNop())

	c.observe(execution.LegEvent{HopID: "mainnet", TxRef: "tx-1"}, domain.LegBroadcast)
	c.observe(execution.LegEvent{HopID: "base", TxRef: "tx-2"}, domain.LegBroadcast)
	c.observe(execution.LegEvent{HopID: "mainnet", TxRef: "tx-1"}, domain.LegCompleted)

	legs, _ := c.close()
	if len(legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(legs))
	}
	if legs[0].TxRef != "tx-1" || legs[0].State != domain.LegCompleted {
		t.Errorf("leg 0 = %+v, want tx-1 COMPLETED", legs[0])
	}
	if legs[1].TxRef != "tx-2" || legs[1].State != domain.LegBroadcast {
		t.Errorf("leg 1 = %+v, want tx-2 BROADCAST", legs[1])
	}
}

func TestLegCollectorMonotonicState(t *testing.T) {
	c := newLegCollector(testClock(), zap.NewNop())

	c.observe(execution.LegEvent{HopID: "mainnet", TxRef: "tx-1"}, domain.LegCompleted)
	completedAt := c.legs[0].ObservedAt

	// A re-delivered broadcast must not regress a completed leg.
	c.observe(execution.LegEvent{HopID: "mainnet", TxRef: "tx-1"}, domain.LegBroadcast)

	legs, _ := c.close()
	if len(legs) != 1 {
		t.Fatalf("expected 1 leg, got %d", len(legs))
	}
	if legs[0].State != domain.LegCompleted {
		t.Errorf("state regressed to %s", legs[0].State)
	}
	if !legs[0].ObservedAt.Equal(completedAt) {
		t.Errorf("observedAt changed on ignored event")
	}
}

func TestLegCollectorDiscardsAfterClose(t *testing.T) {
	c := newLegCollector(testClock(), zap.NewNop())

	c.observe(execution.LegEvent{HopID: "mainnet", TxRef: "tx-1"}, domain.LegBroadcast)
	legs, _ := c.close()
	if len(legs) != 1 {
		t.Fatalf("expected 1 leg at close, got %d", len(legs))
	}

	c.observe(execution.LegEvent{HopID: "mainnet", TxRef: "tx-1"}, domain.LegCompleted)
	c.observe(execution.LegEvent{HopID: "base", TxRef: "tx-late"}, domain.LegBroadcast)

	// The closed collector and the returned copy both stay untouched.
	if len(c.legs) != 1 {
		t.Errorf("late event mutated closed collector: %d legs", len(c.legs))
	}
	if legs[0].State != domain.LegBroadcast {
		t.Errorf("returned copy mutated: %s", legs[0].State)
	}
}

func TestLegCollectorSettledAmount(t *testing.T) {
	c := newLegCollector(testClock(), zap.NewNop())

	// Broadcast events never carry a settled amount worth keeping.
	c.observe(execution.LegEvent{HopID: "mainnet", TxRef: "tx-1", SettledAmount: 500}, domain.LegBroadcast)
	c.observe(execution.LegEvent{HopID: "mainnet", TxRef: "tx-1", SettledAmount: 990}, domain.LegCompleted)
	c.observe(execution.LegEvent{HopID: "base", TxRef: "tx-2", SettledAmount: 985.5}, domain.LegCompleted)

	_, settled := c.close()
	if settled != 985.5 {
		t.Errorf("settled = %v, want 985.5 (latest completed leg)", settled)
	}
}

func TestLegCollectorSettledAmountUnreported(t *testing.T) {
	c := newLegCollector(testClock(), zap.NewNop())

	c.observe(execution.LegEvent{HopID: "mainnet", TxRef: "tx-1"}, domain.LegCompleted)

	_, settled := c.close()
	if settled != 0 {
		t.Errorf("settled = %v, want 0 when no leg reported an amount", settled)
	}
}

func TestLegCollectorCloseReturnsCopy(t *testing.T) {
	c := newLegCollector(testClock(), zap.NewNop())
	c.observe(execution.LegEvent{HopID: "mainnet", TxRef: "tx-1"}, domain.LegBroadcast)

	first, _ := c.close()
	second, _ := c.close()
	first[0].State = "MUTATED"

	if second[0].State != domain.LegBroadcast {
		t.Error("close must return independent copies")
	}
}
