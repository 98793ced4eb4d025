package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ExecutionLatency - wall time of a full signal execution, validation through
// ledger commit. Buckets sized for one exchange round trip plus DB writes.
var ExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradeengine",
		Subsystem: "executor",
		Name:      "execution_latency_ms",
		Help:      "Signal execution latency in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000, 10000},
	},
	[]string{"account_type", "action"},
)

// TradesTotal - executed signals by outcome. Skipped is its own outcome, a
// skipped signal is neither success nor failure.
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeengine",
		Subsystem: "executor",
		Name:      "trades_total",
		Help:      "Total number of processed signals",
	},
	[]string{"symbol", "result"}, // result: success, failed, skipped
)

// PnlTotal - cumulative realized pnl in quote currency. A gauge, not a
// counter: losing trades move it down.
var PnlTotal = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradeengine",
		Subsystem: "executor",
		Name:      "pnl_total_quote",
		Help:      "Total realized PnL in quote currency",
	},
)

// OpenPositions - currently open positions.
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradeengine",
		Subsystem: "ledger",
		Name:      "open_positions",
		Help:      "Current number of open positions",
	},
)

// ProtectiveOrderFailures - protective legs that could not be placed or
// canceled. Non-fatal to the trade but worth alerting on.
var ProtectiveOrderFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeengine",
		Subsystem: "executor",
		Name:      "protective_order_failures_total",
		Help:      "Number of failed protective order operations",
	},
	[]string{"symbol", "leg"}, // leg: stop_loss, take_profit
)

// StatsJobsProcessed - stats queue consumption by outcome.
var StatsJobsProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeengine",
		Subsystem: "stats",
		Name:      "jobs_processed_total",
		Help:      "Total number of stats jobs processed",
	},
	[]string{"result"}, // result: done, failed
)

// RecordTrade records one processed signal and its realized pnl.
func RecordTrade(symbol, result string, pnl float64) {
	TradesTotal.WithLabelValues(symbol, result).Inc()
	if result == "success" && pnl != 0 {
		PnlTotal.Add(pnl)
	}
}

// RecordExecution records the latency of one execution attempt.
func RecordExecution(accountType, action string, latencyMs float64) {
	ExecutionLatency.WithLabelValues(accountType, action).Observe(latencyMs)
}

// RecordProtectiveFailure records one failed protective leg.
func RecordProtectiveFailure(symbol, leg string) {
	ProtectiveOrderFailures.WithLabelValues(symbol, leg).Inc()
}
