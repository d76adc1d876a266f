package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SignalsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trader_signals_processed_total",
		Help: "Total strategy proposals processed by the trading loop.",
	})

	TradesExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_trades_executed_total",
		Help: "Total trades executed, by side.",
	}, []string{"side"})

	RiskRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_risk_rejections_total",
		Help: "Total proposals rejected by risk checks, by alert kind.",
	}, []string{"kind"})

	CycleErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trader_cycle_errors_total",
		Help: "Total trading cycle errors.",
	})

	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trader_cycle_duration_seconds",
		Help:    "Trading cycle duration in seconds.",
		Buckets: prometheus.LinearBuckets(0.05, 0.05, 20),
	})
)

var registerOnce sync.Once

// InitMetrics registers all collectors with the default registry.
// Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(SignalsProcessed)
		prometheus.MustRegister(TradesExecuted)
		prometheus.MustRegister(RiskRejections)
		prometheus.MustRegister(CycleErrors)
		prometheus.MustRegister(CycleDuration)
	})
}
