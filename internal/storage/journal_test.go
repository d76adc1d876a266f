package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"trader_go/internal/domain"
	"trader_go/internal/portfolio"

	"github.com/shopspring/decimal"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_AppendAndLoadTrades(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	entries := []portfolio.TradeLogEntry{
		{ID: "a", Asset: "TOK", Side: domain.SideBuy, Quantity: decimal.NewFromInt(1),
			Price: decimal.NewFromInt(2), BaseAmount: decimal.NewFromInt(2), TsUnixM: 100},
		{ID: "b", Asset: "TOK", Side: domain.SideSell, Quantity: decimal.NewFromInt(1),
			Price: decimal.NewFromInt(3), BaseAmount: decimal.NewFromInt(3), TsUnixM: 200},
	}
	for _, e := range entries {
		if err := j.AppendTrade(ctx, e); err != nil {
			t.Fatalf("AppendTrade(%s): %v", e.ID, err)
		}
	}

	got, err := j.LoadTrades(ctx)
	if err != nil {
		t.Fatalf("LoadTrades: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("trades out of order: %s, %s", got[0].ID, got[1].ID)
	}
	if !got[1].Price.Equal(decimal.NewFromInt(3)) {
		t.Errorf("price lost in round trip: %s", got[1].Price)
	}
}

func TestJournal_DuplicateTradeRejected(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	entry := portfolio.TradeLogEntry{ID: "dup", Asset: "TOK", Side: domain.SideBuy, TsUnixM: 1}
	if err := j.AppendTrade(ctx, entry); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := j.AppendTrade(ctx, entry); err == nil {
		t.Error("duplicate id should be rejected")
	}
}

func TestJournal_Checkpoints(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	now := time.Now().UnixMicro()

	if v, err := j.LoadCheckpoint(ctx, "missing"); err != nil || v != "" {
		t.Errorf("missing checkpoint should be empty, got %q err %v", v, err)
	}

	if err := j.SaveCheckpoint(ctx, "engine", `{"cycles":1}`, now); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if err := j.SaveCheckpoint(ctx, "engine", `{"cycles":2}`, now+1); err != nil {
		t.Fatalf("SaveCheckpoint upsert: %v", err)
	}

	v, err := j.LoadCheckpoint(ctx, "engine")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if v != `{"cycles":2}` {
		t.Errorf("expected upserted value, got %q", v)
	}
}
