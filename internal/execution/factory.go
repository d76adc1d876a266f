package execution

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
)

// Mode selects the execution backend.
type Mode string

const (
	ModePaper Mode = "PAPER"
	ModeLive  Mode = "LIVE"
)

// Factory creates the backend matching the configured mode.
type Factory struct {
	mode        Mode
	slippagePct decimal.Decimal
	feePercent  decimal.Decimal
	client      VenueClient
}

// NewFactory builds a factory. The venue client may be nil for paper mode.
func NewFactory(mode Mode, slippagePct, feePercent decimal.Decimal, client VenueClient) *Factory {
	return &Factory{mode: mode, slippagePct: slippagePct, feePercent: feePercent, client: client}
}

// CreateBackend returns the backend for the configured mode. Live trading
// requires the CONFIRM_REAL_MONEY environment latch, matching the paper
// default everywhere else.
func (f *Factory) CreateBackend() (Backend, error) {
	slog.Info("Initializing execution backend", slog.String("mode", string(f.mode)))

	switch f.mode {
	case ModePaper:
		return NewPaperBackend(f.slippagePct, f.feePercent), nil

	case ModeLive:
		if os.Getenv("CONFIRM_REAL_MONEY") != "true" {
			return nil, fmt.Errorf("live trading requires CONFIRM_REAL_MONEY=true")
		}
		if f.client == nil {
			return nil, fmt.Errorf("live mode requires a venue client")
		}
		slog.Warn("LIVE trading enabled: real funds at risk")
		return NewLiveBackend(f.client), nil

	default:
		return nil, fmt.Errorf("unknown execution mode: %q", f.mode)
	}
}
