package strategy

import (
	"context"

	"trader_go/internal/domain"
)

// Strategy is the contract every trading strategy implements. The engine
// never inspects strategy internals: it collects proposals, reports fills,
// and isolates a failing strategy from the rest of the cycle.
type Strategy interface {
	// GenerateProposals returns the strategy's desired trades over the
	// current asset universe. Must respect ctx's deadline.
	GenerateProposals(ctx context.Context, assets []string) ([]domain.TradeProposal, error)

	// Enabled reports whether the engine should poll this strategy.
	Enabled() bool

	// Name identifies the strategy in proposals, logs and events.
	Name() string

	// RecordFill notifies the strategy that one of its proposals executed.
	RecordFill(asset string)
}
