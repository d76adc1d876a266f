package domain

import "github.com/shopspring/decimal"

// Position represents an open holding in one asset.
// All monetary values are decimals in base currency.
type Position struct {
	Asset          string          `json:"asset"`
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	AvgCostBasis   decimal.Decimal `json:"avg_cost_basis"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	OpenedUnixM    int64           `json:"opened_unix"`
	LastTradeUnixM int64           `json:"last_trade_unix"`
}

// UnrealizedPnL returns (price - avgCost) * quantity at the given price.
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return price.Sub(p.AvgCostBasis).Mul(p.Quantity)
}

// MarketValue returns quantity * price.
func (p *Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(price)
}

// CostValue returns quantity * avgCost, the capital tied up in the position.
func (p *Position) CostValue() decimal.Decimal {
	return p.Quantity.Mul(p.AvgCostBasis)
}
