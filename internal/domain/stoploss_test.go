package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestStopLoss_TrailingRatchetNeverLowers(t *testing.T) {
	// 5% trailing stop seeded at price 100
	o := NewStopLossOrder("TOK", dec("1"), dec("95"), true, dec("0.05"), dec("100"))

	prices := []string{"102", "98", "110", "105", "120", "60"}
	prev := o.StopPrice
	for _, p := range prices {
		o.Ratchet(dec(p))
		if o.StopPrice.LessThan(prev) {
			t.Fatalf("stop price moved down: %s -> %s at price %s", prev, o.StopPrice, p)
		}
		prev = o.StopPrice
	}

	// High-water 120 → stop should be 120 * 0.95 = 114
	if !o.StopPrice.Equal(dec("114")) {
		t.Errorf("expected stop 114, got %s", o.StopPrice)
	}
	if !o.HighWaterPrice.Equal(dec("120")) {
		t.Errorf("expected high water 120, got %s", o.HighWaterPrice)
	}
}

func TestStopLoss_TriggerIdempotent(t *testing.T) {
	o := NewStopLossOrder("TOK", dec("1"), dec("95"), false, decimal.Zero, dec("100"))

	if !o.Trigger() {
		t.Error("first trigger should fire")
	}
	if o.Trigger() {
		t.Error("second trigger must be a no-op")
	}
	if o.TriggeredUnixM == 0 {
		t.Error("trigger timestamp missing")
	}
}

func TestStopLoss_NoRatchetAfterTrigger(t *testing.T) {
	o := NewStopLossOrder("TOK", dec("1"), dec("95"), true, dec("0.05"), dec("100"))
	o.Trigger()

	before := o.StopPrice
	o.Ratchet(dec("200"))
	if !o.StopPrice.Equal(before) {
		t.Error("triggered stop must not ratchet")
	}
}
