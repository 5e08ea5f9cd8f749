package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vilenarios/token-swapper/internal/domain"
	"github.com/vilenarios/token-swapper/internal/execution"
)

// legCollector accumulates chain legs keyed by (hop, reference) in arrival
// order. After close, late events are discarded: the cycle has resolved and
// its record must not be reopened.
type legCollector struct {
	mu      sync.Mutex
	closed  bool
	legs    []domain.ChainLeg
	index   map[string]int // (hop|ref) → position in legs
	settled float64        // latest completed-leg settled amount, 0 if none reported
	now     func() time.Time
	logger  *zap.Logger
}

func newLegCollector(now func() time.Time, logger *zap.Logger) *legCollector {
	return &legCollector{
		index:  make(map[string]int),
		now:    now,
		logger: logger,
	}
}

// observe records one lifecycle event. A completed event for a reference
// already seen as broadcast transitions that leg in place; state transitions
// are monotonic, so a broadcast for an already-completed leg is ignored.
func (c *legCollector) observe(ev execution.LegEvent, state string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("discarding late execution event",
			zap.String("hopId", ev.HopID),
			zap.String("txRef", ev.TxRef),
			zap.String("state", state))
		return
	}

	if state == domain.LegCompleted && ev.SettledAmount > 0 {
		c.settled = ev.SettledAmount
	}

	key := fmt.Sprintf("%s|%s", ev.HopID, ev.TxRef)
	if i, ok := c.index[key]; ok {
		if c.legs[i].State == domain.LegCompleted && state == domain.LegBroadcast {
			return
		}
		c.legs[i].State = state
		c.legs[i].ObservedAt = c.now()
		return
	}

	c.index[key] = len(c.legs)
	c.legs = append(c.legs, domain.ChainLeg{
		HopID:      ev.HopID,
		TxRef:      ev.TxRef,
		State:      state,
		ObservedAt: c.now(),
	})
}

// close stops accepting events and returns a copy of the legs observed so
// far, along with the last settled amount any completed leg reported (0 if
// none did).
func (c *legCollector) close() ([]domain.ChainLeg, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	out := make([]domain.ChainLeg, len(c.legs))
	copy(out, c.legs)
	return out, c.settled
}
