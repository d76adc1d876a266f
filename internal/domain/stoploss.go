package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StopLossOrder is a protective exit watch on a long position.
type StopLossOrder struct {
	ID              string          `json:"id"`
	Asset           string          `json:"asset"`
	Quantity        decimal.Decimal `json:"quantity"`
	StopPrice       decimal.Decimal `json:"stop_price"`
	Trailing        bool            `json:"trailing"`
	TrailingPercent decimal.Decimal `json:"trailing_percent"`
	HighWaterPrice  decimal.Decimal `json:"high_water_price"`
	Triggered       bool            `json:"triggered"`
	CreatedUnixM    int64           `json:"created_unix"`
	TriggeredUnixM  int64           `json:"triggered_unix"`
}

// NewStopLossOrder creates a stop watch. For trailing stops the current
// price seeds the high-water mark.
func NewStopLossOrder(asset string, quantity, stopPrice decimal.Decimal, trailing bool, trailingPercent, currentPrice decimal.Decimal) *StopLossOrder {
	return &StopLossOrder{
		ID:              uuid.NewString(),
		Asset:           asset,
		Quantity:        quantity,
		StopPrice:       stopPrice,
		Trailing:        trailing,
		TrailingPercent: trailingPercent,
		HighWaterPrice:  currentPrice,
		CreatedUnixM:    time.Now().UnixMicro(),
	}
}

// Ratchet raises the high-water mark and recomputes the stop price when the
// market makes a new high. The stop price never moves down; a recompute that
// would lower it is discarded.
func (o *StopLossOrder) Ratchet(currentPrice decimal.Decimal) {
	if !o.Trailing || o.Triggered {
		return
	}
	if currentPrice.LessThanOrEqual(o.HighWaterPrice) {
		return
	}
	o.HighWaterPrice = currentPrice
	next := currentPrice.Mul(decimal.NewFromInt(1).Sub(o.TrailingPercent))
	if next.GreaterThan(o.StopPrice) {
		o.StopPrice = next
	}
}

// Trigger marks the order triggered. Idempotent: a second trigger is a no-op
// and returns false.
func (o *StopLossOrder) Trigger() bool {
	if o.Triggered {
		return false
	}
	o.Triggered = true
	o.TriggeredUnixM = time.Now().UnixMicro()
	return true
}
