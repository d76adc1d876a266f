package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trader_go/internal/domain"
	"trader_go/internal/event"
	"trader_go/internal/execution"
	"trader_go/internal/infra"
	"trader_go/internal/portfolio"
	"trader_go/internal/pricing"
	"trader_go/internal/risk"
	"trader_go/internal/strategy"

	"github.com/shopspring/decimal"
)

const (
	maxExecutionHistory = 512
	maxErrorHistory     = 256
)

// TradeJournal persists trade-log entries. Optional: a nil journal
// keeps the engine fully in-memory.
type TradeJournal interface {
	AppendTrade(ctx context.Context, entry portfolio.TradeLogEntry) error
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	State            domain.EngineState `json:"state"`
	Uptime           time.Duration      `json:"uptime"`
	ActiveExecutions int                `json:"active_executions"`
	SignalsProcessed uint64             `json:"signals_processed"`
	TradesExecuted   uint64             `json:"trades_executed"`
	TotalVolume      decimal.Decimal    `json:"total_volume"`
	ErrorsLastHour   int                `json:"errors_last_hour"`
}

// Engine is the top-level orchestrator: it schedules the trading,
// monitoring and housekeeping loops, admits strategy proposals through
// the risk controller and applies fills to the ledger. The trading
// path is the only ledger writer apart from stop-loss exits.
type Engine struct {
	cfg     Config
	ledger  *portfolio.Ledger
	riskCtl *risk.Controller
	prices  pricing.PriceSource
	backend execution.Backend
	bus     *event.Bus
	journal TradeJournal
	budget  *infra.ErrorBudget

	mu         sync.Mutex
	state      domain.EngineState
	strategies []strategy.Strategy
	active     map[string]*domain.TradeExecution
	history    []*domain.TradeExecution
	errors     []string
	lastCycle  time.Time
	lastReport time.Time
	lastReset  time.Time
	startedAt  time.Time

	signalsProcessed uint64
	tradesExecuted   uint64
	totalVolume      decimal.Decimal

	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// New wires the engine with its collaborators. Missing required
// collaborators are reported by Start, not here, so callers can
// assemble incrementally.
func New(cfg Config, ledger *portfolio.Ledger, riskCtl *risk.Controller, prices pricing.PriceSource, backend execution.Backend, bus *event.Bus, journal TradeJournal) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &Engine{
		cfg:     cfg,
		ledger:  ledger,
		riskCtl: riskCtl,
		prices:  prices,
		backend: backend,
		bus:     bus,
		journal: journal,
		budget:  infra.NewErrorBudget(cfg.ErrorBudgetPerHour),
		state:   domain.StateStopped,
		active:  make(map[string]*domain.TradeExecution),
		now:     time.Now,
	}, nil
}

// Start validates the collaborators, transitions Stopped -> Starting ->
// Running and spawns the three loops.
func (e *Engine) Start() error {
	if err := e.checkCollaborators(); err != nil {
		return err
	}

	e.mu.Lock()
	if !e.state.CanTransition(domain.StateStarting) {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("cannot start from state %s", state)
	}
	e.state = domain.StateStarting

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.startedAt = e.now()
	e.lastReset = e.startedAt
	e.state = domain.StateRunning
	e.mu.Unlock()

	e.wg.Add(3)
	go e.tradingLoop(ctx)
	go e.monitoringLoop(ctx)
	go e.housekeepingLoop(ctx)

	slog.Info("Engine started",
		slog.String("backend", e.backend.Name()),
		slog.Int("max_concurrent", e.cfg.MaxConcurrentTrades),
		slog.Duration("strategy_interval", e.cfg.StrategyInterval))
	e.bus.Emit(event.KindEngineStarted, event.EnginePayload{
		State:   domain.StateRunning,
		AtUnixM: e.now().UnixMicro(),
	})
	return nil
}

func (e *Engine) checkCollaborators() error {
	if e.prices == nil {
		return fmt.Errorf("configuration error: price source not attached")
	}
	if e.riskCtl == nil {
		return fmt.Errorf("configuration error: risk controller not attached")
	}
	if e.ledger == nil {
		return fmt.Errorf("configuration error: ledger not attached")
	}
	if e.backend == nil {
		return fmt.Errorf("configuration error: execution backend not attached")
	}
	if e.bus == nil {
		return fmt.Errorf("configuration error: event bus not attached")
	}
	return nil
}

// Stop cancels the loops, then waits up to the shutdown grace period
// for in-flight executions to drain. Executions still outstanding are
// logged and abandoned, never rolled back.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.state.CanTransition(domain.StateStopping) {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("cannot stop from state %s", state)
	}
	e.state = domain.StateStopping
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	loopsDone := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(loopsDone)
	}()

	deadline := e.now().Add(e.cfg.ShutdownGrace)
	select {
	case <-loopsDone:
	case <-time.After(e.cfg.ShutdownGrace):
	}
	abandoned := e.drainActive(deadline)

	e.mu.Lock()
	e.state = domain.StateStopped
	e.mu.Unlock()

	slog.Info("Engine stopped", slog.Int("abandoned_executions", abandoned))
	e.bus.Emit(event.KindEngineStopped, event.EnginePayload{
		State:    domain.StateStopped,
		AtUnixM:  e.now().UnixMicro(),
		Abandons: abandoned,
	})
	return nil
}

// drainActive polls the active set until it empties or the deadline
// passes. Returns how many executions were abandoned.
func (e *Engine) drainActive(deadline time.Time) int {
	for {
		e.mu.Lock()
		remaining := len(e.active)
		e.mu.Unlock()
		if remaining == 0 {
			return 0
		}
		if !e.now().Before(deadline) {
			e.mu.Lock()
			for id, exec := range e.active {
				slog.Warn("Abandoning in-flight execution",
					slog.String("id", id),
					slog.String("asset", exec.Proposal.Asset))
			}
			abandoned := len(e.active)
			e.mu.Unlock()
			return abandoned
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// AddStrategy registers a strategy. Changes take effect at the next
// cycle boundary.
func (e *Engine) AddStrategy(s strategy.Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies = append(e.strategies, s)
	slog.Info("Strategy added", slog.String("strategy", s.Name()))
}

// RemoveStrategy unregisters a strategy by name. Returns false when no
// strategy with that name is registered.
func (e *Engine) RemoveStrategy(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.strategies {
		if s.Name() == name {
			e.strategies = append(e.strategies[:i], e.strategies[i+1:]...)
			slog.Info("Strategy removed", slog.String("strategy", name))
			return true
		}
	}
	return false
}

// Subscribe registers an event handler on the engine's bus.
func (e *Engine) Subscribe(kind event.Kind, h event.Handler) error {
	return e.bus.Subscribe(kind, h)
}

// CreateStopLoss registers a protective exit watch with the risk
// controller.
func (e *Engine) CreateStopLoss(ctx context.Context, asset string, quantity, stopPrice decimal.Decimal, trailing bool) (string, error) {
	return e.riskCtl.CreateStopLoss(ctx, asset, quantity, stopPrice, trailing)
}

// RemoveStopLoss cancels a stop-loss watch by id.
func (e *Engine) RemoveStopLoss(id string) bool {
	return e.riskCtl.RemoveStopLoss(id)
}

// Status reports the current lifecycle state and run totals.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	var uptime time.Duration
	if e.state == domain.StateRunning && !e.startedAt.IsZero() {
		uptime = e.now().Sub(e.startedAt)
	}
	return Status{
		State:            e.state,
		Uptime:           uptime,
		ActiveExecutions: len(e.active),
		SignalsProcessed: e.signalsProcessed,
		TradesExecuted:   e.tradesExecuted,
		TotalVolume:      e.totalVolume,
		ErrorsLastHour:   e.budget.Count(),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() domain.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ExecutionHistory returns a copy of the bounded execution history.
func (e *Engine) ExecutionHistory() []*domain.TradeExecution {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.TradeExecution, len(e.history))
	copy(out, e.history)
	return out
}

// recordError tracks a recovered error against the rolling budget.
// Exhausting the budget raises critical-error and, when configured,
// drives the engine to the Error state.
func (e *Engine) recordError(msg string) {
	e.mu.Lock()
	e.errors = append(e.errors, msg)
	if len(e.errors) > maxErrorHistory {
		e.errors = e.errors[len(e.errors)-maxErrorHistory:]
	}
	e.mu.Unlock()

	if !e.budget.Record() {
		return
	}

	slog.Error("Error budget exhausted",
		slog.Int("errors_last_hour", e.budget.Count()),
		slog.Int("budget", e.cfg.ErrorBudgetPerHour))
	e.bus.Emit(event.KindCriticalError, event.ErrorPayload{
		Message:    msg,
		ErrorsHour: e.budget.Count(),
	})

	if !e.cfg.EmergencyStopOnError {
		return
	}
	e.mu.Lock()
	var cancel context.CancelFunc
	if e.state.CanTransition(domain.StateError) {
		e.state = domain.StateError
		cancel = e.cancel
	}
	e.mu.Unlock()
	if cancel != nil {
		cancel()
		e.riskCtl.TripEmergencyStop("error budget exhausted")
	}
}
