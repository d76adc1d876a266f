package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trader_go/internal/domain"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// PaperFill is one simulated fill kept for inspection.
type PaperFill struct {
	Asset        string
	Side         domain.Side
	Size         decimal.Decimal
	Price        decimal.Decimal
	Fee          decimal.Decimal
	TsUnixMicros int64
}

// PaperBackend simulates execution with a fixed slippage and fee model.
// Used for strategy validation before any live capital is committed.
type PaperBackend struct {
	slippagePct decimal.Decimal // fraction, 0.001 = 10 bps adverse move
	feePercent  decimal.Decimal // percent, 0.1 = 0.1%

	mu    sync.Mutex
	fills []PaperFill
}

// NewPaperBackend creates a paper execution backend.
func NewPaperBackend(slippagePct, feePercent decimal.Decimal) *PaperBackend {
	return &PaperBackend{
		slippagePct: slippagePct,
		feePercent:  feePercent,
	}
}

// Name implements Backend.
func (p *PaperBackend) Name() string { return "paper" }

// Execute fills immediately at the expected price moved adversely by the
// slippage fraction: up for buys, down for sells.
func (p *PaperBackend) Execute(_ context.Context, proposal domain.TradeProposal, expectedPrice decimal.Decimal) (Fill, error) {
	if !expectedPrice.IsPositive() {
		return Fill{}, fmt.Errorf("paper execution needs a positive expected price, got %s", expectedPrice)
	}

	var actual decimal.Decimal
	switch proposal.Side {
	case domain.SideBuy:
		actual = expectedPrice.Mul(decimal.NewFromInt(1).Add(p.slippagePct))
	case domain.SideSell:
		actual = expectedPrice.Mul(decimal.NewFromInt(1).Sub(p.slippagePct))
	default:
		return Fill{}, fmt.Errorf("unknown side: %q", proposal.Side)
	}

	// Buys are sized in base currency, sells in asset quantity.
	notional := proposal.Size
	if proposal.Side == domain.SideSell {
		notional = proposal.Size.Mul(actual)
	}
	fee := notional.Mul(p.feePercent).Div(oneHundred)

	fill := PaperFill{
		Asset:        proposal.Asset,
		Side:         proposal.Side,
		Size:         proposal.Size,
		Price:        actual,
		Fee:          fee,
		TsUnixMicros: time.Now().UnixMicro(),
	}
	p.mu.Lock()
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	slog.Info("PAPER EXECUTION: filled",
		slog.String("asset", proposal.Asset),
		slog.String("side", string(proposal.Side)),
		slog.String("size", proposal.Size.String()),
		slog.String("price", actual.String()),
		slog.String("fee", fee.String()))

	return Fill{Filled: true, ActualPrice: actual, Fee: fee}, nil
}

// Fills returns a copy of all simulated fills.
func (p *PaperBackend) Fills() []PaperFill {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PaperFill, len(p.fills))
	copy(out, p.fills)
	return out
}
