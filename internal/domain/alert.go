package domain

import "time"

// AlertKind identifies which risk rule produced an alert.
type AlertKind string

const (
	AlertEmergencyStop AlertKind = "EMERGENCY_STOP"
	AlertPositionSize  AlertKind = "POSITION_SIZE"
	AlertLossLimit     AlertKind = "LOSS_LIMIT"
	AlertVolatility    AlertKind = "VOLATILITY"
	AlertLiquidity     AlertKind = "LIQUIDITY"
	AlertCorrelation   AlertKind = "CORRELATION"
	AlertStopLoss      AlertKind = "STOP_LOSS"
	AlertErrorBudget   AlertKind = "ERROR_BUDGET"
)

// AlertSeverity ranks how urgent an alert is.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "INFO"
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// RiskAlert is one immutable risk-rule finding.
type RiskAlert struct {
	Kind         AlertKind     `json:"kind"`
	Severity     AlertSeverity `json:"severity"`
	Message      string        `json:"message"`
	Asset        string        `json:"asset,omitempty"`
	Action       string        `json:"action,omitempty"`
	CreatedUnixM int64         `json:"created_unix"`
}

// NewRiskAlert creates an alert stamped with the current time.
func NewRiskAlert(kind AlertKind, severity AlertSeverity, message, asset, action string) RiskAlert {
	return RiskAlert{
		Kind:         kind,
		Severity:     severity,
		Message:      message,
		Asset:        asset,
		Action:       action,
		CreatedUnixM: time.Now().UnixMicro(),
	}
}

// ActiveWithin reports whether the alert is younger than the given window.
func (a RiskAlert) ActiveWithin(window time.Duration, nowUnixM int64) bool {
	return nowUnixM-a.CreatedUnixM < window.Microseconds()
}

// Blocking reports whether the alert rejects the trade it was raised for.
// Correlation findings are advisory only.
func (a RiskAlert) Blocking() bool {
	return a.Severity != SeverityInfo && a.Kind != AlertCorrelation
}
