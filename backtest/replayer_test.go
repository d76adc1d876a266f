package backtest

import (
	"context"
	"path/filepath"
	"testing"

	"trader_go/internal/portfolio"
	"trader_go/internal/storage"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRebuild_ReproducesLedgerState(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	journal, err := storage.NewJournal(dbPath)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}

	// Run a short session against a live ledger and journal every trade.
	live := portfolio.NewLedger(dec("1000"))
	fee := dec("0.1")
	if !live.Buy("TOK", "TOK", dec("100"), dec("2"), fee) {
		t.Fatal("seed buy failed")
	}
	if !live.Buy("TOK", "TOK", dec("50"), dec("2.5"), fee) {
		t.Fatal("second buy failed")
	}
	if !live.Sell("TOK", dec("20"), dec("3"), fee) {
		t.Fatal("sell failed")
	}
	for _, entry := range live.TradeLog() {
		if err := journal.AppendTrade(ctx, entry); err != nil {
			t.Fatalf("AppendTrade: %v", err)
		}
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	replayer, err := NewReplayer(dbPath)
	if err != nil {
		t.Fatalf("NewReplayer: %v", err)
	}
	defer replayer.Close()

	rebuilt, err := replayer.Rebuild(ctx, dec("1000"))
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if !rebuilt.BaseBalance().Equal(live.BaseBalance()) {
		t.Errorf("balance mismatch: replay %s, live %s", rebuilt.BaseBalance(), live.BaseBalance())
	}
	if !rebuilt.RealizedPnL().Equal(live.RealizedPnL()) {
		t.Errorf("realized pnl mismatch: replay %s, live %s", rebuilt.RealizedPnL(), live.RealizedPnL())
	}

	livePos, _ := live.Position("TOK")
	replayPos, ok := rebuilt.Position("TOK")
	if !ok {
		t.Fatal("replayed ledger lost the open position")
	}
	if !replayPos.Quantity.Equal(livePos.Quantity) {
		t.Errorf("quantity mismatch: replay %s, live %s", replayPos.Quantity, livePos.Quantity)
	}
	if !replayPos.AvgCostBasis.Equal(livePos.AvgCostBasis) {
		t.Errorf("cost basis mismatch: replay %s, live %s", replayPos.AvgCostBasis, livePos.AvgCostBasis)
	}
}

func TestRebuild_EmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	journal, err := storage.NewJournal(dbPath)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	journal.Close()

	replayer, err := NewReplayer(dbPath)
	if err != nil {
		t.Fatalf("NewReplayer: %v", err)
	}
	defer replayer.Close()

	ledger, err := replayer.Rebuild(context.Background(), dec("500"))
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if !ledger.BaseBalance().Equal(dec("500")) {
		t.Errorf("empty journal should leave the balance untouched, got %s", ledger.BaseBalance())
	}
}
