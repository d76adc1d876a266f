package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"trader_go/internal/domain"
	"trader_go/internal/event"
	"trader_go/internal/obs"
	"trader_go/internal/strategy"
)

// tradingLoop wakes on a fixed tick and runs a cycle whenever the
// strategy interval has elapsed since the last one.
func (e *Engine) tradingLoop(ctx context.Context) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Trading loop panicked", slog.Any("panic", r))
		}
	}()

	ticker := time.NewTicker(e.cfg.TradingTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		due := e.lastCycle.IsZero() || e.now().Sub(e.lastCycle) >= e.cfg.StrategyInterval
		if due {
			e.lastCycle = e.now()
		}
		e.mu.Unlock()
		if !due {
			continue
		}

		if err := e.runCycle(ctx); err != nil {
			slog.Error("Trading cycle failed, backing off",
				slog.Any("error", err),
				slog.Duration("backoff", e.cfg.CycleBackoff))
			obs.CycleErrors.Inc()
			e.recordError(err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.CycleBackoff):
			}
		}
	}
}

// runCycle collects proposals from every enabled strategy, ranks them
// by confidence and admits them in order until the concurrency cap is
// hit. A panic anywhere in the cycle is recovered into the returned
// error so the loop can back off instead of dying.
func (e *Engine) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	cycleStart := e.now()
	defer func() {
		obs.CycleDuration.Observe(e.now().Sub(cycleStart).Seconds())
	}()

	e.mu.Lock()
	strategies := make([]strategy.Strategy, len(e.strategies))
	copy(strategies, e.strategies)
	e.mu.Unlock()

	proposals := e.collectProposals(ctx, strategies)
	if len(proposals) == 0 {
		return nil
	}

	// Stable sort keeps arrival order for equal confidence.
	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].Confidence > proposals[j].Confidence
	})

	started := 0
	for i, p := range proposals {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// In-flight covers executions started this cycle plus any
		// still draining from earlier ones.
		e.mu.Lock()
		inFlight := started + len(e.active)
		e.mu.Unlock()
		if inFlight >= e.cfg.MaxConcurrentTrades {
			slog.Warn("Concurrency cap reached, dropping remaining proposals",
				slog.Int("dropped", len(proposals)-i),
				slog.Int("cap", e.cfg.MaxConcurrentTrades))
			break
		}

		e.processProposal(ctx, p)
		started++
	}
	return nil
}

// collectProposals polls each enabled strategy under its own timeout.
// A failing or panicking strategy is isolated: its proposals are
// dropped for the cycle and the others are unaffected.
func (e *Engine) collectProposals(ctx context.Context, strategies []strategy.Strategy) []domain.TradeProposal {
	var proposals []domain.TradeProposal
	for _, s := range strategies {
		if !s.Enabled() {
			continue
		}
		batch, err := e.pollStrategy(ctx, s)
		if err != nil {
			slog.Error("Strategy failed, dropping its proposals for this cycle",
				slog.String("strategy", s.Name()),
				slog.Any("error", err))
			e.recordError(fmt.Sprintf("strategy %s: %v", s.Name(), err))
			continue
		}
		for _, p := range batch {
			if p.Strategy == "" {
				p.Strategy = s.Name()
			}
			proposals = append(proposals, p)
		}
	}
	return proposals
}

func (e *Engine) pollStrategy(ctx context.Context, s strategy.Strategy) (batch []domain.TradeProposal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	pollCtx, cancel := context.WithTimeout(ctx, e.cfg.StrategyTimeout)
	defer cancel()
	return s.GenerateProposals(pollCtx, e.cfg.Assets)
}

// processProposal runs one proposal through price lookup, risk
// admission and execution. Failures here never abort the cycle.
func (e *Engine) processProposal(ctx context.Context, p domain.TradeProposal) {
	obs.SignalsProcessed.Inc()
	e.mu.Lock()
	e.signalsProcessed++
	e.mu.Unlock()

	if err := p.Validate(); err != nil {
		slog.Warn("Dropping invalid proposal",
			slog.String("strategy", p.Strategy),
			slog.Any("error", err))
		return
	}

	quote, err := e.prices.CurrentPrice(ctx, p.Asset)
	if err != nil {
		slog.Warn("Price lookup failed, skipping proposal",
			slog.String("asset", p.Asset),
			slog.Any("error", err))
		obs.CycleErrors.Inc()
		e.recordError(fmt.Sprintf("price lookup %s: %v", p.Asset, err))
		return
	}

	exec := domain.NewTradeExecution(p, quote.Price)
	e.mu.Lock()
	e.active[exec.ID] = exec
	e.mu.Unlock()
	defer e.finishExecution(exec)

	approved, alerts := e.riskCtl.ValidateTrade(ctx, p.Asset, p.Side, p.Size, quote.Price)
	if !approved {
		msg := "risk rejected"
		for _, a := range alerts {
			if a.Blocking() {
				msg = a.Message
				obs.RiskRejections.WithLabelValues(string(a.Kind)).Inc()
				break
			}
		}
		exec.Complete(domain.ResultRiskRejected, msg)
		slog.Info("Proposal rejected by risk controller",
			slog.String("asset", p.Asset),
			slog.String("side", string(p.Side)),
			slog.String("reason", msg))
		e.bus.Emit(event.KindSignalRejected, event.RejectionPayload{Proposal: p, Alerts: alerts})
		return
	}

	e.execute(ctx, exec)
}

// execute fills an admitted proposal through the backend and applies
// the result to the ledger.
func (e *Engine) execute(ctx context.Context, exec *domain.TradeExecution) {
	p := exec.Proposal
	fill, err := e.backend.Execute(ctx, p, exec.ExpectedPrice)
	if err != nil {
		exec.Complete(domain.ResultFailed, err.Error())
		obs.CycleErrors.Inc()
		e.recordError(fmt.Sprintf("execute %s %s: %v", p.Side, p.Asset, err))
		e.bus.Emit(event.KindTradeFailed, event.TradePayload{Execution: exec})
		return
	}
	if !fill.Filled {
		exec.Complete(domain.ResultSkipped, "backend declined the fill")
		e.bus.Emit(event.KindTradeFailed, event.TradePayload{Execution: exec})
		return
	}

	exec.ActualPrice = fill.ActualPrice
	exec.Fee = fill.Fee

	var applied bool
	switch p.Side {
	case domain.SideBuy:
		applied = e.ledger.Buy(p.Asset, p.Symbol, p.Size, fill.ActualPrice, e.cfg.FeePercent)
	case domain.SideSell:
		applied = e.ledger.Sell(p.Asset, p.Size, fill.ActualPrice, e.cfg.FeePercent)
	}
	if !applied {
		exec.Complete(domain.ResultSkipped, "ledger rejected the trade")
		e.bus.Emit(event.KindTradeFailed, event.TradePayload{Execution: exec})
		return
	}

	exec.Complete(domain.ResultSuccess, "")
	obs.TradesExecuted.WithLabelValues(string(p.Side)).Inc()

	notional := p.Size
	if p.Side == domain.SideSell {
		notional = p.Size.Mul(fill.ActualPrice)
	}
	e.mu.Lock()
	e.tradesExecuted++
	e.totalVolume = e.totalVolume.Add(notional)
	strategies := make([]strategy.Strategy, len(e.strategies))
	copy(strategies, e.strategies)
	e.mu.Unlock()

	for _, s := range strategies {
		if s.Name() == p.Strategy {
			s.RecordFill(p.Asset)
		}
	}

	e.persistLastTrade(ctx)
	e.bus.Emit(event.KindTradeExecuted, event.TradePayload{Execution: exec})
}

// finishExecution moves a completed execution from the active set to
// the bounded history. A still-pending execution stays active.
func (e *Engine) finishExecution(exec *domain.TradeExecution) {
	if !exec.Result.Terminal() {
		return
	}
	e.mu.Lock()
	delete(e.active, exec.ID)
	e.history = append(e.history, exec)
	if len(e.history) > maxExecutionHistory {
		e.history = e.history[len(e.history)-maxExecutionHistory:]
	}
	e.mu.Unlock()
}

// persistLastTrade appends the newest ledger entry to the journal.
// Persistence failures are recorded, never fatal.
func (e *Engine) persistLastTrade(ctx context.Context) {
	if e.journal == nil {
		return
	}
	log := e.ledger.TradeLog()
	if len(log) == 0 {
		return
	}
	if err := e.journal.AppendTrade(ctx, log[len(log)-1]); err != nil {
		slog.Error("Failed to journal trade", slog.Any("error", err))
		e.recordError(fmt.Sprintf("journal: %v", err))
	}
}
