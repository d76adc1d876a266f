package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TradeProposal is a strategy's request to trade.
// For a BUY the size is the base-currency amount to spend;
// for a SELL it is the asset quantity to unwind.
type TradeProposal struct {
	Asset        string          `json:"asset"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	Size         decimal.Decimal `json:"size"`
	Confidence   float64         `json:"confidence"`
	Strategy     string          `json:"strategy"`
	Rationale    string          `json:"rationale"`
	CreatedUnixM int64           `json:"created_unix"`
}

// Validate checks the proposal contract: known side, positive size,
// confidence within [0, 1].
func (p *TradeProposal) Validate() error {
	if p.Asset == "" {
		return fmt.Errorf("proposal missing asset id")
	}
	if !p.Side.Valid() {
		return fmt.Errorf("invalid side: %q", p.Side)
	}
	if !p.Size.IsPositive() {
		return fmt.Errorf("size must be positive, got %s", p.Size)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence must be within [0,1], got %f", p.Confidence)
	}
	return nil
}
