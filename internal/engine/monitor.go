package engine

import (
	"context"
	"log/slog"
	"time"

	"trader_go/internal/domain"
	"trader_go/internal/event"

	"github.com/shopspring/decimal"
)

// monitoringLoop snapshots the portfolio, evaluates risk limits and
// stop losses and emits periodic performance reports.
func (e *Engine) monitoringLoop(ctx context.Context) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Monitoring loop panicked", slog.Any("panic", r))
		}
	}()

	ticker := time.NewTicker(e.cfg.MonitoringTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, alert := range e.riskCtl.CheckRiskLimits(ctx) {
			slog.Warn("Risk limit violation",
				slog.String("kind", string(alert.Kind)),
				slog.String("message", alert.Message))
			e.bus.Emit(event.KindRiskViolation, event.ViolationPayload{Alert: alert})
		}

		e.evaluateStopLosses(ctx)

		e.mu.Lock()
		reportDue := e.lastReport.IsZero() || e.now().Sub(e.lastReport) >= e.cfg.ReportInterval
		if reportDue {
			e.lastReport = e.now()
		}
		e.mu.Unlock()
		if reportDue {
			e.emitReport(ctx)
		}
	}
}

// evaluateStopLosses runs the stop-loss watch and unwinds every
// triggered order with a protective market sell.
func (e *Engine) evaluateStopLosses(ctx context.Context) {
	triggered, alerts := e.riskCtl.CheckStopLosses(ctx)
	for _, alert := range alerts {
		e.bus.Emit(event.KindRiskViolation, event.ViolationPayload{Alert: alert})
	}

	for _, order := range triggered {
		quote, err := e.prices.CurrentPrice(ctx, order.Asset)
		if err != nil {
			slog.Error("Cannot price protective sell, position left open",
				slog.String("asset", order.Asset),
				slog.Any("error", err))
			e.recordError("stop loss sell price lookup: " + err.Error())
			continue
		}

		proposal := domain.TradeProposal{
			Asset:        order.Asset,
			Side:         domain.SideSell,
			Size:         order.Quantity,
			Confidence:   1,
			Strategy:     "stop-loss",
			Rationale:    "protective exit at " + order.StopPrice.String(),
			CreatedUnixM: e.now().UnixMicro(),
		}
		exec := domain.NewTradeExecution(proposal, quote.Price)
		e.mu.Lock()
		e.active[exec.ID] = exec
		e.mu.Unlock()
		e.execute(ctx, exec)
		e.finishExecution(exec)
	}
}

func (e *Engine) emitReport(ctx context.Context) {
	prices := e.snapshotPrices(ctx)
	value := e.ledger.TotalValue(prices)
	snap := e.ledger.Snapshot()

	e.mu.Lock()
	payload := event.ReportPayload{
		PortfolioValue:   value,
		BaseBalance:      snap.BaseBalance,
		RealizedPnL:      snap.RealizedPnL,
		SignalsProcessed: e.signalsProcessed,
		TradesExecuted:   e.tradesExecuted,
		TotalVolume:      e.totalVolume,
		OpenPositions:    len(snap.Positions),
		AtUnixM:          e.now().UnixMicro(),
	}
	e.mu.Unlock()

	slog.Info("Performance report",
		slog.String("portfolio_value", payload.PortfolioValue.String()),
		slog.String("realized_pnl", payload.RealizedPnL.String()),
		slog.Uint64("trades", payload.TradesExecuted),
		slog.Int("open_positions", payload.OpenPositions))
	e.bus.Emit(event.KindPerformanceReport, payload)
}

// snapshotPrices fetches a best-effort quote per held asset. Assets
// without a quote fall back to cost basis in TotalValue.
func (e *Engine) snapshotPrices(ctx context.Context) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	for asset := range e.ledger.Positions() {
		quote, err := e.prices.CurrentPrice(ctx, asset)
		if err != nil {
			continue
		}
		prices[asset] = quote.Price
	}
	return prices
}

// housekeepingLoop trims bounded buffers and rolls the error budget.
func (e *Engine) housekeepingLoop(ctx context.Context) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Housekeeping loop panicked", slog.Any("panic", r))
		}
	}()

	ticker := time.NewTicker(e.cfg.HousekeepingTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		e.riskCtl.TrimAlerts()

		e.mu.Lock()
		if len(e.history) > maxExecutionHistory {
			e.history = e.history[len(e.history)-maxExecutionHistory:]
		}
		if len(e.errors) > maxErrorHistory {
			e.errors = e.errors[len(e.errors)-maxErrorHistory:]
		}
		resetDue := e.now().Sub(e.lastReset) >= time.Hour
		if resetDue {
			e.lastReset = e.now()
		}
		e.mu.Unlock()

		if resetDue {
			e.budget.Reset()
			slog.Debug("Hourly error counter reset")
		}
	}
}
