package event

import (
	"trader_go/internal/domain"

	"github.com/shopspring/decimal"
)

// Kind defines the type of engine event.
type Kind uint16

const (
	KindEngineStarted Kind = iota + 1
	KindEngineStopped
	KindTradeExecuted
	KindTradeFailed
	KindRiskViolation
	KindSignalRejected
	KindPerformanceReport
	KindCriticalError
)

func (k Kind) String() string {
	switch k {
	case KindEngineStarted:
		return "engine-started"
	case KindEngineStopped:
		return "engine-stopped"
	case KindTradeExecuted:
		return "trade-executed"
	case KindTradeFailed:
		return "trade-failed"
	case KindRiskViolation:
		return "risk-violation"
	case KindSignalRejected:
		return "signal-rejected"
	case KindPerformanceReport:
		return "performance-report"
	case KindCriticalError:
		return "critical-error"
	default:
		return "unknown"
	}
}

// EnginePayload accompanies engine-started and engine-stopped.
type EnginePayload struct {
	State    domain.EngineState `json:"state"`
	AtUnixM  int64              `json:"at_unix"`
	Abandons int                `json:"abandoned_executions,omitempty"`
}

// TradePayload accompanies trade-executed and trade-failed.
type TradePayload struct {
	Execution *domain.TradeExecution `json:"execution"`
}

// RejectionPayload accompanies signal-rejected.
type RejectionPayload struct {
	Proposal domain.TradeProposal `json:"proposal"`
	Alerts   []domain.RiskAlert   `json:"alerts"`
}

// ViolationPayload accompanies risk-violation.
type ViolationPayload struct {
	Alert domain.RiskAlert `json:"alert"`
}

// ReportPayload accompanies performance-report.
type ReportPayload struct {
	PortfolioValue   decimal.Decimal `json:"portfolio_value"`
	BaseBalance      decimal.Decimal `json:"base_balance"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
	SignalsProcessed uint64          `json:"signals_processed"`
	TradesExecuted   uint64          `json:"trades_executed"`
	TotalVolume      decimal.Decimal `json:"total_volume"`
	OpenPositions    int             `json:"open_positions"`
	AtUnixM          int64           `json:"at_unix"`
}

// ErrorPayload accompanies critical-error.
type ErrorPayload struct {
	Message    string `json:"message"`
	ErrorsHour int    `json:"errors_last_hour"`
}
