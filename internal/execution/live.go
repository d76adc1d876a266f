package execution

import (
	"context"
	"fmt"
	"log/slog"

	"trader_go/internal/domain"

	"github.com/shopspring/decimal"
)

// VenueClient is the minimal contract a live venue adapter must satisfy.
// Concrete clients (DEX routers, RPC swap senders) live outside this core.
type VenueClient interface {
	Swap(ctx context.Context, asset string, side domain.Side, size, limitPrice decimal.Decimal) (Fill, error)
}

// LiveBackend routes executions to a real venue through a VenueClient.
type LiveBackend struct {
	client VenueClient
}

// NewLiveBackend wraps a venue client.
func NewLiveBackend(client VenueClient) *LiveBackend {
	return &LiveBackend{client: client}
}

// Name implements Backend.
func (l *LiveBackend) Name() string { return "live" }

// Execute implements Backend.
func (l *LiveBackend) Execute(ctx context.Context, proposal domain.TradeProposal, expectedPrice decimal.Decimal) (Fill, error) {
	if l.client == nil {
		return Fill{}, fmt.Errorf("live backend has no venue client configured")
	}

	slog.Info("Sending order to venue",
		slog.String("asset", proposal.Asset),
		slog.String("side", string(proposal.Side)),
		slog.String("size", proposal.Size.String()))

	return l.client.Swap(ctx, proposal.Asset, proposal.Side, proposal.Size, expectedPrice)
}
