package portfolio

import (
	"context"
	"testing"

	"trader_go/internal/domain"
	"trader_go/internal/pricing"

	"github.com/shopspring/decimal"
)

func newTestRebalancer(t *testing.T, cfg Config, ledger *Ledger, src *pricing.StaticSource) *Rebalancer {
	t.Helper()
	r, err := NewRebalancer(cfg, ledger, src)
	if err != nil {
		t.Fatalf("NewRebalancer: %v", err)
	}
	return r
}

func TestRebalancer_AnalyzeBalance(t *testing.T) {
	ledger := NewLedger(dec("100"))
	src := pricing.NewStaticSource()
	src.SetPrice("AAA", dec("1"), dec("1000"))
	src.SetPrice("BBB", dec("2"), dec("1000"))

	// Hold 40 base worth of AAA, nothing of BBB. Total value = 100.
	ledger.Buy("AAA", "AAA", dec("40"), dec("1"), decimal.Zero)

	cfg := Config{
		TargetAllocations: map[string]decimal.Decimal{
			"AAA": dec("20"), // over-allocated by 20 points
			"BBB": dec("10"), // under-allocated by 10 points
		},
		RebalanceThreshold: dec("5"),
	}
	r := newTestRebalancer(t, cfg, ledger, src)

	recs, err := r.AnalyzeBalance(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeBalance: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(recs))
	}

	// Sorted by deviation magnitude descending: AAA (20) before BBB (10).
	if recs[0].Asset != "AAA" || recs[0].Side != domain.SideSell {
		t.Errorf("expected AAA sell first, got %s %s", recs[0].Asset, recs[0].Side)
	}
	if recs[1].Asset != "BBB" || recs[1].Side != domain.SideBuy {
		t.Errorf("expected BBB buy second, got %s %s", recs[1].Asset, recs[1].Side)
	}
	// 20% of 100 = 20 base to sell
	if !recs[0].Amount.Equal(dec("20")) {
		t.Errorf("expected sell amount 20, got %s", recs[0].Amount)
	}
}

func TestRebalancer_BelowThresholdNoRecommendation(t *testing.T) {
	ledger := NewLedger(dec("100"))
	src := pricing.NewStaticSource()
	src.SetPrice("AAA", dec("1"), dec("1000"))
	ledger.Buy("AAA", "AAA", dec("21"), dec("1"), decimal.Zero)

	cfg := Config{
		TargetAllocations:  map[string]decimal.Decimal{"AAA": dec("20")},
		RebalanceThreshold: dec("5"),
	}
	r := newTestRebalancer(t, cfg, ledger, src)

	recs, err := r.AnalyzeBalance(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeBalance: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("deviation of 1 point is below threshold, got %d recommendations", len(recs))
	}
}

func TestRebalancer_ExecuteSellsFirstAndAggregatesErrors(t *testing.T) {
	ledger := NewLedger(dec("10"))
	src := pricing.NewStaticSource()
	src.SetPrice("AAA", dec("1"), dec("1000"))
	src.SetPrice("BBB", dec("1"), dec("1000"))
	ledger.Buy("AAA", "AAA", dec("8"), dec("1"), decimal.Zero)

	recs := []RebalanceRecommendation{
		// Buy listed first on purpose: execution must reorder sells ahead.
		{Asset: "BBB", Symbol: "BBB", Side: domain.SideBuy, Amount: dec("6")},
		{Asset: "AAA", Symbol: "AAA", Side: domain.SideSell, Amount: dec("5")},
		{Asset: "ZZZ", Symbol: "ZZZ", Side: domain.SideSell, Amount: dec("5")}, // no price, must fail
	}

	cfg := Config{
		TargetAllocations:  map[string]decimal.Decimal{"AAA": dec("10"), "BBB": dec("10")},
		RebalanceThreshold: dec("1"),
	}
	r := newTestRebalancer(t, cfg, ledger, src)

	report := r.ExecuteRebalancing(context.Background(), recs)

	// The BBB buy of 6 only funds if the AAA sell of 5 ran first (2 + 5 >= 6).
	if report.Executed != 2 {
		t.Errorf("expected 2 executed, got %d (errors: %v)", report.Executed, report.Errors)
	}
	if report.Failed != 1 {
		t.Errorf("expected 1 failure for unpriced asset, got %d", report.Failed)
	}
	if len(report.Errors) != 1 {
		t.Errorf("expected 1 aggregated error, got %d", len(report.Errors))
	}
	if _, ok := ledger.Position("BBB"); !ok {
		t.Error("BBB position missing: sells did not free balance before buys")
	}
}

func TestRebalancerConfig_Validate(t *testing.T) {
	bad := Config{
		TargetAllocations:  map[string]decimal.Decimal{"AAA": dec("80"), "BBB": dec("30")},
		RebalanceThreshold: dec("5"),
	}
	if err := bad.Validate(); err == nil {
		t.Error("allocations above 100% should fail validation")
	}

	negative := Config{RebalanceThreshold: dec("-1")}
	if err := negative.Validate(); err == nil {
		t.Error("negative threshold should fail validation")
	}
}
