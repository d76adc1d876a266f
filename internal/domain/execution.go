package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecutionResult is the terminal outcome of one execution attempt.
type ExecutionResult string

const (
	ResultPending      ExecutionResult = "PENDING"
	ResultSuccess      ExecutionResult = "SUCCESS"
	ResultFailed       ExecutionResult = "FAILED"
	ResultSkipped      ExecutionResult = "SKIPPED"
	ResultRiskRejected ExecutionResult = "RISK_REJECTED"
)

// Terminal reports whether the result ends the execution lifecycle.
func (r ExecutionResult) Terminal() bool {
	return r == ResultSuccess || r == ResultFailed || r == ResultSkipped || r == ResultRiskRejected
}

// TradeExecution records one attempted execution of a proposal.
type TradeExecution struct {
	ID             string          `json:"id"`
	Proposal       TradeProposal   `json:"proposal"`
	ExpectedPrice  decimal.Decimal `json:"expected_price"`
	ActualPrice    decimal.Decimal `json:"actual_price"`
	Fee            decimal.Decimal `json:"fee"`
	Result         ExecutionResult `json:"result"`
	Error          string          `json:"error,omitempty"`
	StartedUnixM   int64           `json:"started_unix"`
	CompletedUnixM int64           `json:"completed_unix"`
}

// NewTradeExecution opens a pending execution for a proposal.
func NewTradeExecution(p TradeProposal, expectedPrice decimal.Decimal) *TradeExecution {
	return &TradeExecution{
		ID:            uuid.NewString(),
		Proposal:      p,
		ExpectedPrice: expectedPrice,
		Result:        ResultPending,
		StartedUnixM:  time.Now().UnixMicro(),
	}
}

// Complete sets the terminal result exactly once. The completion timestamp
// is only written together with a terminal result; repeat calls are no-ops.
func (e *TradeExecution) Complete(result ExecutionResult, errMsg string) bool {
	if e.Result.Terminal() || !result.Terminal() {
		return false
	}
	e.Result = result
	e.Error = errMsg
	e.CompletedUnixM = time.Now().UnixMicro()
	return true
}
