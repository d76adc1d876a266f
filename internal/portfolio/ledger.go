package portfolio

import (
	"log/slog"
	"sync"
	"time"

	"trader_go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// TradeLogEntry is one immutable record in the ledger's trade log.
type TradeLogEntry struct {
	ID          string          `json:"id"`
	Asset       string          `json:"asset"`
	Symbol      string          `json:"symbol"`
	Side        domain.Side     `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	Fee         decimal.Decimal `json:"fee"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	TsUnixM     int64           `json:"ts_unix"`
}

// Ledger is the in-memory portfolio: a base-currency balance plus one
// position per asset. Buy and Sell are the only mutators; every other
// component holds a read-only view. The trading loop is the single writer,
// the mutex covers reads from the monitoring and housekeeping loops.
type Ledger struct {
	mu             sync.RWMutex
	baseBalance    decimal.Decimal
	initialBalance decimal.Decimal
	positions      map[string]*domain.Position
	tradeLog       []TradeLogEntry
	realizedPnL    decimal.Decimal
}

// NewLedger creates a ledger funded with the initial base-currency balance.
func NewLedger(initialBalance decimal.Decimal) *Ledger {
	return &Ledger{
		baseBalance:    initialBalance,
		initialBalance: initialBalance,
		positions:      make(map[string]*domain.Position),
	}
}

// Buy spends baseAmount of base currency on the asset at the given price.
// feePercent is expressed in percent (0.1 means 0.1%). Returns false when
// cost plus fee exceeds the available balance.
func (l *Ledger) Buy(asset, symbol string, baseAmount, price, feePercent decimal.Decimal) bool {
	if !baseAmount.IsPositive() || !price.IsPositive() {
		slog.Warn("Ledger buy rejected: non-positive amount or price",
			slog.String("asset", asset),
			slog.String("amount", baseAmount.String()),
			slog.String("price", price.String()))
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fee := baseAmount.Mul(feePercent).Div(oneHundred)
	total := baseAmount.Add(fee)
	if total.GreaterThan(l.baseBalance) {
		slog.Warn("Ledger buy rejected: insufficient balance",
			slog.String("asset", asset),
			slog.String("required", total.String()),
			slog.String("available", l.baseBalance.String()))
		return false
	}

	quantity := baseAmount.Div(price)
	now := time.Now().UnixMicro()

	pos, ok := l.positions[asset]
	if !ok {
		pos = &domain.Position{Asset: asset, Symbol: symbol, OpenedUnixM: now}
		l.positions[asset] = pos
	}

	// Weighted-average cost basis over old and added quantity.
	oldCost := pos.Quantity.Mul(pos.AvgCostBasis)
	newQty := pos.Quantity.Add(quantity)
	pos.AvgCostBasis = oldCost.Add(quantity.Mul(price)).Div(newQty)
	pos.Quantity = newQty
	pos.LastTradeUnixM = now

	l.baseBalance = l.baseBalance.Sub(total)
	l.append(TradeLogEntry{
		ID:         uuid.NewString(),
		Asset:      asset,
		Symbol:     symbol,
		Side:       domain.SideBuy,
		Quantity:   quantity,
		Price:      price,
		BaseAmount: baseAmount,
		Fee:        fee,
		TsUnixM:    now,
	})

	slog.Info("Ledger buy",
		slog.String("asset", asset),
		slog.String("qty", quantity.String()),
		slog.String("price", price.String()),
		slog.String("balance", l.baseBalance.String()))
	return true
}

// Sell unwinds quantity of the position at the given price, realizing
// (price - avgCost) * quantity. The position is removed once its quantity
// reaches exactly zero. Returns false when quantity exceeds the holding.
func (l *Ledger) Sell(asset string, quantity, price, feePercent decimal.Decimal) bool {
	if !quantity.IsPositive() || !price.IsPositive() {
		slog.Warn("Ledger sell rejected: non-positive quantity or price",
			slog.String("asset", asset))
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[asset]
	if !ok || quantity.GreaterThan(pos.Quantity) {
		held := decimal.Zero
		if ok {
			held = pos.Quantity
		}
		slog.Warn("Ledger sell rejected: insufficient quantity",
			slog.String("asset", asset),
			slog.String("requested", quantity.String()),
			slog.String("held", held.String()))
		return false
	}

	proceeds := quantity.Mul(price)
	fee := proceeds.Mul(feePercent).Div(oneHundred)
	realized := price.Sub(pos.AvgCostBasis).Mul(quantity)
	now := time.Now().UnixMicro()

	l.baseBalance = l.baseBalance.Add(proceeds.Sub(fee))
	l.realizedPnL = l.realizedPnL.Add(realized)
	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	pos.Quantity = pos.Quantity.Sub(quantity)
	pos.LastTradeUnixM = now
	if pos.Quantity.IsZero() {
		delete(l.positions, asset)
	}

	l.append(TradeLogEntry{
		ID:          uuid.NewString(),
		Asset:       asset,
		Symbol:      pos.Symbol,
		Side:        domain.SideSell,
		Quantity:    quantity,
		Price:       price,
		BaseAmount:  proceeds,
		Fee:         fee,
		RealizedPnL: realized,
		TsUnixM:     now,
	})

	slog.Info("Ledger sell",
		slog.String("asset", asset),
		slog.String("qty", quantity.String()),
		slog.String("price", price.String()),
		slog.String("realized", realized.String()),
		slog.String("balance", l.baseBalance.String()))
	return true
}

// append must be called with the lock held.
func (l *Ledger) append(e TradeLogEntry) {
	l.tradeLog = append(l.tradeLog, e)
}

// BaseBalance returns the current base-currency balance.
func (l *Ledger) BaseBalance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.baseBalance
}

// InitialBalance returns the balance the ledger was funded with.
func (l *Ledger) InitialBalance() decimal.Decimal {
	return l.initialBalance
}

// RealizedPnL returns cumulative realized profit and loss.
func (l *Ledger) RealizedPnL() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realizedPnL
}

// Position returns a copy of the position for an asset.
func (l *Ledger) Position(asset string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.positions[asset]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Positions returns a copy of all open positions.
func (l *Ledger) Positions() map[string]domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]domain.Position, len(l.positions))
	for k, v := range l.positions {
		out[k] = *v
	}
	return out
}

// Snapshot is a consistent point-in-time view of the ledger.
type Snapshot struct {
	BaseBalance decimal.Decimal            `json:"base_balance"`
	RealizedPnL decimal.Decimal            `json:"realized_pnl"`
	Positions   map[string]domain.Position `json:"positions"`
	TradeCount  int                        `json:"trade_count"`
}

// Snapshot copies balance, positions and realized P&L under one lock,
// so the three never disagree with each other.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make(map[string]domain.Position, len(l.positions))
	for k, v := range l.positions {
		positions[k] = *v
	}
	return Snapshot{
		BaseBalance: l.baseBalance,
		RealizedPnL: l.realizedPnL,
		Positions:   positions,
		TradeCount:  len(l.tradeLog),
	}
}

// TradeLog returns a copy of the trade log.
func (l *Ledger) TradeLog() []TradeLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]TradeLogEntry, len(l.tradeLog))
	copy(out, l.tradeLog)
	return out
}

// TotalValue returns base balance plus the market value of every position.
// Positions without a quote are valued at cost basis.
func (l *Ledger) TotalValue(prices map[string]decimal.Decimal) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := l.baseBalance
	for asset, pos := range l.positions {
		if price, ok := prices[asset]; ok {
			total = total.Add(pos.MarketValue(price))
		} else {
			total = total.Add(pos.CostValue())
		}
	}
	return total
}
