package backtest

import (
	"context"
	"fmt"

	"trader_go/internal/domain"
	"trader_go/internal/portfolio"
	"trader_go/internal/storage"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Replayer rebuilds portfolio state from a persisted trade journal.
// Replay is deterministic: the same journal and initial balance always
// produce the same ledger.
type Replayer struct {
	journal *storage.Journal
}

// NewReplayer opens the journal at dbPath for replay.
func NewReplayer(dbPath string) (*Replayer, error) {
	journal, err := storage.NewJournal(dbPath)
	if err != nil {
		return nil, err
	}
	return &Replayer{journal: journal}, nil
}

// Close releases the underlying journal.
func (r *Replayer) Close() error {
	return r.journal.Close()
}

// Rebuild replays every journaled trade in order into a fresh ledger
// funded with the given initial balance.
func (r *Replayer) Rebuild(ctx context.Context, initialBalance decimal.Decimal) (*portfolio.Ledger, error) {
	trades, err := r.journal.LoadTrades(ctx)
	if err != nil {
		return nil, err
	}

	ledger := portfolio.NewLedger(initialBalance)
	for _, t := range trades {
		var applied bool
		switch t.Side {
		case domain.SideBuy:
			applied = ledger.Buy(t.Asset, t.Symbol, t.BaseAmount, t.Price, feePct(t.Fee, t.BaseAmount))
		case domain.SideSell:
			applied = ledger.Sell(t.Asset, t.Quantity, t.Price, feePct(t.Fee, t.Quantity.Mul(t.Price)))
		default:
			return nil, fmt.Errorf("trade %s has unknown side %q", t.ID, t.Side)
		}
		if !applied {
			return nil, fmt.Errorf("trade %s does not replay against the ledger", t.ID)
		}
	}
	return ledger, nil
}

// feePct recovers the fee rate in percent from the recorded fee amount
// and the trade notional.
func feePct(fee, notional decimal.Decimal) decimal.Decimal {
	if notional.IsZero() {
		return decimal.Zero
	}
	return fee.Div(notional).Mul(oneHundred)
}
