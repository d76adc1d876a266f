package strategy

import (
	"context"
	"sync"
	"time"

	"trader_go/internal/domain"

	"github.com/shopspring/decimal"
)

// dcaConfidence is deliberately middling: DCA buys are schedule-driven,
// not conviction-driven.
const dcaConfidence = 0.5

// IntervalDCA buys a fixed base-currency amount of one asset on a fixed
// schedule. The reference strategy shipped with the engine.
type IntervalDCA struct {
	name     string
	asset    string
	symbol   string
	amount   decimal.Decimal
	interval time.Duration

	mu       sync.Mutex
	lastFill time.Time
	enabled  bool
}

// NewIntervalDCA creates a DCA strategy for one asset.
func NewIntervalDCA(name, asset, symbol string, amount decimal.Decimal, interval time.Duration) *IntervalDCA {
	return &IntervalDCA{
		name:     name,
		asset:    asset,
		symbol:   symbol,
		amount:   amount,
		interval: interval,
		enabled:  true,
	}
}

// Name implements Strategy.
func (s *IntervalDCA) Name() string { return s.name }

// Enabled implements Strategy.
func (s *IntervalDCA) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled toggles the strategy.
func (s *IntervalDCA) SetEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = v
}

// GenerateProposals emits one buy proposal when the interval has elapsed
// since the last fill and the asset is in the universe.
func (s *IntervalDCA) GenerateProposals(_ context.Context, assets []string) ([]domain.TradeProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || !s.due() {
		return nil, nil
	}

	inUniverse := false
	for _, a := range assets {
		if a == s.asset {
			inUniverse = true
			break
		}
	}
	if !inUniverse {
		return nil, nil
	}

	return []domain.TradeProposal{{
		Asset:        s.asset,
		Symbol:       s.symbol,
		Side:         domain.SideBuy,
		Size:         s.amount,
		Confidence:   dcaConfidence,
		Strategy:     s.name,
		Rationale:    "scheduled DCA buy",
		CreatedUnixM: time.Now().UnixMicro(),
	}}, nil
}

// RecordFill implements Strategy: a fill restarts the schedule.
func (s *IntervalDCA) RecordFill(asset string) {
	if asset != s.asset {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFill = time.Now()
}

// due must be called with the lock held.
func (s *IntervalDCA) due() bool {
	return s.lastFill.IsZero() || time.Since(s.lastFill) >= s.interval
}
