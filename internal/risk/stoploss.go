package risk

import (
	"context"
	"fmt"
	"log/slog"

	"trader_go/internal/domain"

	"github.com/shopspring/decimal"
)

// CreateStopLoss registers a protective exit watch and returns its id.
// Trailing stops ratchet off the current price as their first high-water
// mark; when no quote is available the stop price seeds it.
func (c *Controller) CreateStopLoss(ctx context.Context, asset string, quantity, stopPrice decimal.Decimal, trailing bool) (string, error) {
	if !quantity.IsPositive() || !stopPrice.IsPositive() {
		return "", fmt.Errorf("stop loss requires positive quantity and stop price")
	}

	highWater := stopPrice
	if quote, err := c.prices.CurrentPrice(ctx, asset); err == nil {
		highWater = quote.Price
	}

	order := domain.NewStopLossOrder(asset, quantity, stopPrice, trailing, c.cfg.TrailingStopPercent, highWater)

	c.mu.Lock()
	c.stops[order.ID] = order
	c.mu.Unlock()

	slog.Info("Stop loss created",
		slog.String("id", order.ID),
		slog.String("asset", asset),
		slog.String("stop", stopPrice.String()),
		slog.Bool("trailing", trailing))
	return order.ID, nil
}

// RemoveStopLoss deletes a watch by id.
func (c *Controller) RemoveStopLoss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.stops[id]; !ok {
		return false
	}
	delete(c.stops, id)
	return true
}

// StopLosses returns a copy of every registered watch.
func (c *Controller) StopLosses() []domain.StopLossOrder {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.StopLossOrder, 0, len(c.stops))
	for _, o := range c.stops {
		out = append(out, *o)
	}
	return out
}

// CheckStopLosses evaluates every non-triggered watch against the current
// price: trailing stops ratchet first, then any order whose stop price has
// been reached is triggered exactly once and returned with an alert.
func (c *Controller) CheckStopLosses(ctx context.Context) ([]domain.StopLossOrder, []domain.RiskAlert) {
	c.mu.Lock()
	orders := make([]*domain.StopLossOrder, 0, len(c.stops))
	for _, o := range c.stops {
		if !o.Triggered {
			orders = append(orders, o)
		}
	}
	c.mu.Unlock()

	var triggered []domain.StopLossOrder
	var alerts []domain.RiskAlert

	for _, o := range orders {
		quote, err := c.prices.CurrentPrice(ctx, o.Asset)
		if err != nil {
			slog.Warn("Stop loss price lookup failed",
				slog.String("asset", o.Asset), slog.Any("error", err))
			continue
		}

		c.mu.Lock()
		o.Ratchet(quote.Price)
		fire := quote.Price.LessThanOrEqual(o.StopPrice) && o.Trigger()
		snapshot := *o
		c.mu.Unlock()

		if !fire {
			continue
		}

		alert := domain.NewRiskAlert(domain.AlertStopLoss, domain.SeverityCritical,
			fmt.Sprintf("stop loss hit at %s (stop %s)", quote.Price, o.StopPrice),
			o.Asset, fmt.Sprintf("sell %s", o.Quantity))
		c.record(alert)
		triggered = append(triggered, snapshot)
		alerts = append(alerts, alert)

		slog.Warn("Stop loss triggered",
			slog.String("id", o.ID),
			slog.String("asset", o.Asset),
			slog.String("price", quote.Price.String()),
			slog.String("stop", o.StopPrice.String()))
	}
	return triggered, alerts
}
