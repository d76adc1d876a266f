package execution

import (
	"context"

	"trader_go/internal/domain"

	"github.com/shopspring/decimal"
)

// Fill is the outcome of one execution attempt at a venue.
type Fill struct {
	Filled      bool
	ActualPrice decimal.Decimal
	Fee         decimal.Decimal
}

// Backend abstracts the execution venue. Paper and live backends share
// this contract; the engine treats them uniformly.
type Backend interface {
	// Execute attempts to fill the proposal near the expected price.
	Execute(ctx context.Context, proposal domain.TradeProposal, expectedPrice decimal.Decimal) (Fill, error)

	// Name identifies the backend in logs and status output.
	Name() string
}
