package pricing

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// StaticSource is an in-memory price source for paper runs and tests.
// Prices are set by the embedding application.
type StaticSource struct {
	mu         sync.RWMutex
	quotes     map[string]Quote
	assets     map[string]AssetInfo
	volatility map[string]decimal.Decimal
}

// NewStaticSource creates an empty static source.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		quotes:     make(map[string]Quote),
		assets:     make(map[string]AssetInfo),
		volatility: make(map[string]decimal.Decimal),
	}
}

// SetAsset registers an asset with its metadata and current quote.
func (s *StaticSource) SetAsset(asset string, info AssetInfo, quote Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[asset] = info
	s.quotes[asset] = quote
}

// SetPrice updates the quote for an asset.
func (s *StaticSource) SetPrice(asset string, price, volume24h decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[asset] = Quote{Price: price, Volume24h: volume24h}
}

// SetVolatility records the volatility measure for an asset.
func (s *StaticSource) SetVolatility(asset string, v decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volatility[asset] = v
}

// CurrentPrice implements PriceSource.
func (s *StaticSource) CurrentPrice(_ context.Context, asset string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[asset]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPrice, asset)
	}
	return q, nil
}

// SupportedAssets implements PriceSource.
func (s *StaticSource) SupportedAssets(_ context.Context) (map[string]AssetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]AssetInfo, len(s.assets))
	for k, v := range s.assets {
		out[k] = v
	}
	return out, nil
}

// RecentVolatility implements AnalyticsSource. Assets without a recorded
// measure report zero volatility.
func (s *StaticSource) RecentVolatility(_ context.Context, asset string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volatility[asset], nil
}
