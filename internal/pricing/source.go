package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned when a source has no quote for an asset.
var ErrNoPrice = errors.New("no price available")

// Quote is one price observation.
type Quote struct {
	Price     decimal.Decimal
	Volume24h decimal.Decimal
}

// AssetInfo is venue metadata for a supported asset.
type AssetInfo struct {
	Symbol string
	Name   string
}

// PriceSource supplies current prices for the trading universe.
// Implementations are external collaborators (data feeds, aggregators);
// the engine only consumes this contract.
type PriceSource interface {
	CurrentPrice(ctx context.Context, asset string) (Quote, error)
	SupportedAssets(ctx context.Context) (map[string]AssetInfo, error)
}

// AnalyticsSource supplies a recent volatility measure per asset.
// Optional: a nil source disables the volatility check.
type AnalyticsSource interface {
	RecentVolatility(ctx context.Context, asset string) (decimal.Decimal, error)
}
