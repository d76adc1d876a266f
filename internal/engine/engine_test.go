package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trader_go/internal/domain"
	"trader_go/internal/event"
	"trader_go/internal/execution"
	"trader_go/internal/portfolio"
	"trader_go/internal/pricing"
	"trader_go/internal/risk"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// stubStrategy returns a fixed batch of proposals per cycle.
type stubStrategy struct {
	name      string
	enabled   bool
	proposals []domain.TradeProposal
	err       error
	panics    bool

	mu    sync.Mutex
	fills []string
}

func (s *stubStrategy) GenerateProposals(_ context.Context, _ []string) ([]domain.TradeProposal, error) {
	if s.panics {
		panic("strategy blew up")
	}
	return s.proposals, s.err
}

func (s *stubStrategy) Enabled() bool { return s.enabled }
func (s *stubStrategy) Name() string  { return s.name }

func (s *stubStrategy) RecordFill(asset string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills = append(s.fills, asset)
}

func (s *stubStrategy) fillCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fills)
}

func permissiveRiskConfig() risk.Config {
	return risk.Config{
		MinPositionSize:        dec("0.001"),
		MaxPositionSize:        dec("1000"),
		MaxPositionPct:         dec("100"),
		MaxDailyLossPct:        dec("90"),
		MaxWeeklyLossPct:       dec("95"),
		CircuitBreakerLossPct:  dec("99"),
		CircuitBreakerCooldown: time.Hour,
		MaxVolatility:          dec("100"),
		MinLiquidityVolume:     dec("0"),
		MaxVolumeFraction:      dec("1"),
		TrailingStopPercent:    dec("0.05"),
		AlertWindow:            time.Hour,
	}
}

type fixture struct {
	engine *Engine
	ledger *portfolio.Ledger
	prices *pricing.StaticSource
	risk   *risk.Controller
	bus    *event.Bus
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	ledger := portfolio.NewLedger(dec("1000"))
	prices := pricing.NewStaticSource()
	prices.SetPrice("TOK", dec("2"), dec("1000000"))

	ctl, err := risk.NewController(permissiveRiskConfig(), ledger, prices, prices)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	backend := execution.NewPaperBackend(decimal.Zero, decimal.Zero)
	bus := event.NewBus()

	eng, err := New(cfg, ledger, ctl, prices, backend, bus, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{engine: eng, ledger: ledger, prices: prices, risk: ctl, bus: bus}
}

func buyProposal(size, confidence string, strat string) domain.TradeProposal {
	return domain.TradeProposal{
		Asset:      "TOK",
		Symbol:     "TOK",
		Side:       domain.SideBuy,
		Size:       dec(size),
		Confidence: mustFloat(confidence),
		Strategy:   strat,
	}
}

func mustFloat(s string) float64 {
	f, _ := dec(s).Float64()
	return f
}

func TestStart_MissingCollaborator(t *testing.T) {
	cfg := DefaultConfig()
	eng, err := New(cfg, nil, nil, nil, nil, event.NewBus(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Start(); err == nil {
		t.Fatal("Start without collaborators should fail with a configuration error")
	}
	if eng.State() != domain.StateStopped {
		t.Errorf("failed start must leave state STOPPED, got %s", eng.State())
	}
}

func TestStartStop_Lifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeePercent = decimal.Zero
	cfg.ShutdownGrace = time.Second
	f := newFixture(t, cfg)

	var events []event.Kind
	var mu sync.Mutex
	record := func(kind event.Kind, _ any) {
		mu.Lock()
		events = append(events, kind)
		mu.Unlock()
	}
	f.engine.Subscribe(event.KindEngineStarted, record)
	f.engine.Subscribe(event.KindEngineStopped, record)

	if err := f.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if f.engine.State() != domain.StateRunning {
		t.Errorf("expected RUNNING, got %s", f.engine.State())
	}
	if err := f.engine.Start(); err == nil {
		t.Error("second Start should be rejected")
	}

	if err := f.engine.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.engine.State() != domain.StateStopped {
		t.Errorf("expected STOPPED, got %s", f.engine.State())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != event.KindEngineStarted || events[1] != event.KindEngineStopped {
		t.Errorf("unexpected event sequence: %v", events)
	}
}

func TestRunCycle_ConfidenceOrderAndCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentTrades = 2
	cfg.FeePercent = decimal.Zero
	f := newFixture(t, cfg)

	strat := &stubStrategy{name: "stub", enabled: true, proposals: []domain.TradeProposal{
		buyProposal("10", "0.9", "stub"),
		buyProposal("10", "0.5", "stub"),
		buyProposal("10", "0.95", "stub"),
	}}
	f.engine.AddStrategy(strat)

	var executed []float64
	f.engine.Subscribe(event.KindTradeExecuted, func(_ event.Kind, payload any) {
		p := payload.(event.TradePayload)
		executed = append(executed, p.Execution.Proposal.Confidence)
	})

	if err := f.engine.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	if len(executed) != 2 {
		t.Fatalf("expected 2 executions under cap 2, got %d", len(executed))
	}
	if executed[0] != 0.95 || executed[1] != 0.9 {
		t.Errorf("expected highest confidence first, got %v", executed)
	}
	if strat.fillCount() != 2 {
		t.Errorf("expected 2 fills reported to the strategy, got %d", strat.fillCount())
	}

	st := f.engine.Status()
	if st.TradesExecuted != 2 {
		t.Errorf("expected 2 trades in totals, got %d", st.TradesExecuted)
	}
	if !st.TotalVolume.Equal(dec("20")) {
		t.Errorf("expected volume 20, got %s", st.TotalVolume)
	}
}

func TestRunCycle_FailingStrategyIsolated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeePercent = decimal.Zero
	f := newFixture(t, cfg)

	f.engine.AddStrategy(&stubStrategy{name: "broken", enabled: true, panics: true})
	healthy := &stubStrategy{name: "healthy", enabled: true, proposals: []domain.TradeProposal{
		buyProposal("10", "0.8", "healthy"),
	}}
	f.engine.AddStrategy(healthy)

	if err := f.engine.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if healthy.fillCount() != 1 {
		t.Errorf("healthy strategy should execute despite broken peer, fills=%d", healthy.fillCount())
	}
	if f.engine.Status().ErrorsLastHour == 0 {
		t.Error("broken strategy should count against the error budget")
	}
}

func TestRunCycle_RiskRejectionEmitsEvent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeePercent = decimal.Zero
	f := newFixture(t, cfg)

	f.risk.TripEmergencyStop("manual")
	f.engine.AddStrategy(&stubStrategy{name: "stub", enabled: true, proposals: []domain.TradeProposal{
		buyProposal("10", "0.9", "stub"),
	}})

	var rejected []event.RejectionPayload
	f.engine.Subscribe(event.KindSignalRejected, func(_ event.Kind, payload any) {
		rejected = append(rejected, payload.(event.RejectionPayload))
	})

	if err := f.engine.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if len(rejected) != 1 {
		t.Fatalf("expected 1 rejection event, got %d", len(rejected))
	}
	if len(rejected[0].Alerts) == 0 || rejected[0].Alerts[0].Kind != domain.AlertEmergencyStop {
		t.Errorf("expected emergency-stop alert, got %+v", rejected[0].Alerts)
	}

	hist := f.engine.ExecutionHistory()
	if len(hist) != 1 || hist[0].Result != domain.ResultRiskRejected {
		t.Errorf("rejection should land in history as RISK_REJECTED, got %+v", hist)
	}
	if f.engine.Status().TradesExecuted != 0 {
		t.Error("rejected proposal must not count as an executed trade")
	}
}

func TestRunCycle_PriceLookupFailureSkipsProposal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeePercent = decimal.Zero
	f := newFixture(t, cfg)

	unknown := buyProposal("10", "0.9", "stub")
	unknown.Asset = "GHOST"
	unknown.Symbol = "GHOST"
	f.engine.AddStrategy(&stubStrategy{name: "stub", enabled: true, proposals: []domain.TradeProposal{
		unknown,
		buyProposal("10", "0.5", "stub"),
	}})

	if err := f.engine.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	st := f.engine.Status()
	if st.TradesExecuted != 1 {
		t.Errorf("the priced proposal should still execute, got %d trades", st.TradesExecuted)
	}
	if st.ErrorsLastHour == 0 {
		t.Error("price lookup failure should count against the error budget")
	}
}

func TestRunCycle_DisabledStrategySkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeePercent = decimal.Zero
	f := newFixture(t, cfg)

	f.engine.AddStrategy(&stubStrategy{name: "off", enabled: false, proposals: []domain.TradeProposal{
		buyProposal("10", "0.9", "off"),
	}})

	if err := f.engine.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if f.engine.Status().TradesExecuted != 0 {
		t.Error("disabled strategy must not be polled")
	}
}

func TestAddRemoveStrategy(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	f.engine.AddStrategy(&stubStrategy{name: "a", enabled: true})
	f.engine.AddStrategy(&stubStrategy{name: "b", enabled: true})

	if !f.engine.RemoveStrategy("a") {
		t.Error("removing a registered strategy should succeed")
	}
	if f.engine.RemoveStrategy("a") {
		t.Error("removing twice should fail")
	}
	if f.engine.RemoveStrategy("missing") {
		t.Error("removing an unknown strategy should fail")
	}
}

func TestErrorBudget_CriticalErrorDrivesErrorState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeePercent = decimal.Zero
	cfg.ErrorBudgetPerHour = 2
	cfg.EmergencyStopOnError = true
	cfg.ShutdownGrace = time.Second
	f := newFixture(t, cfg)

	var critical int
	f.engine.Subscribe(event.KindCriticalError, func(_ event.Kind, _ any) { critical++ })

	if err := f.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.engine.recordError("transient one")
	f.engine.recordError("transient two")
	if f.engine.State() != domain.StateRunning {
		t.Fatalf("budget not yet exhausted, expected RUNNING, got %s", f.engine.State())
	}

	f.engine.recordError("transient three")
	if f.engine.State() != domain.StateError {
		t.Errorf("exhausted budget should drive state to ERROR, got %s", f.engine.State())
	}
	if critical == 0 {
		t.Error("expected a critical-error event")
	}
	if !f.risk.EmergencyStopActive() {
		t.Error("emergency stop should trip on error-state entry")
	}
}

func TestStopLoss_TriggeredOrderUnwindsPosition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeePercent = decimal.Zero
	f := newFixture(t, cfg)
	ctx := context.Background()

	if !f.ledger.Buy("TOK", "TOK", dec("10"), dec("2"), decimal.Zero) {
		t.Fatal("seed buy failed")
	}
	if _, err := f.engine.CreateStopLoss(ctx, "TOK", dec("5"), dec("1.8"), false); err != nil {
		t.Fatalf("CreateStopLoss: %v", err)
	}

	// Price falls through the stop.
	f.prices.SetPrice("TOK", dec("1.7"), dec("1000000"))
	f.engine.evaluateStopLosses(ctx)

	// The buy held 10/2 = 5 quantity; the stop sells all of it, so the
	// position is removed outright.
	if pos, ok := f.ledger.Position("TOK"); ok {
		t.Errorf("expected position fully unwound, still holding %s", pos.Quantity)
	}
	if !f.ledger.BaseBalance().Equal(dec("998.5")) {
		t.Errorf("expected proceeds 5*1.7 credited to the 990 remainder, got %s", f.ledger.BaseBalance())
	}
}

func TestStatus_Uptime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShutdownGrace = time.Second
	f := newFixture(t, cfg)

	base := time.Now()
	var offset atomic.Int64
	f.engine.now = func() time.Time { return base.Add(time.Duration(offset.Load())) }

	if err := f.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	offset.Store(int64(90 * time.Second))

	st := f.engine.Status()
	if st.State != domain.StateRunning {
		t.Errorf("expected RUNNING, got %s", st.State)
	}
	if st.Uptime != 90*time.Second {
		t.Errorf("expected 90s uptime, got %s", st.Uptime)
	}

	if err := f.engine.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.engine.Status().Uptime != 0 {
		t.Error("stopped engine reports zero uptime")
	}
}
