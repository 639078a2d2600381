// Package telemetry registers the simulator's Prometheus metrics and exposes
// them as package-level vars, the same init()-and-MustRegister shape the
// reference coinbase bot uses for bot_orders_total/bot_equity_usd/etc. The
// httpapi package serves these at /metrics.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	// EngineTicksTotal counts matching engine ticks.
	EngineTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_ticks_total",
			Help: "Matching engine ticks processed",
		},
	)

	// EngineOrdersFilledTotal counts fills by order type and side.
	EngineOrdersFilledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_orders_filled_total",
			Help: "Orders filled, split by order type and side",
		},
		[]string{"order_type", "side"},
	)

	// EngineTPSLTriggersTotal counts take-profit/stop-loss triggers by kind.
	EngineTPSLTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_tpsl_triggers_total",
			Help: "Take-profit/stop-loss triggers fired, split by kind",
		},
		[]string{"kind"},
	)

	// EngineFillErrorsTotal counts per-order fill failures the engine
	// isolated rather than letting abort a tick.
	EngineFillErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_fill_errors_total",
			Help: "Fill attempts that failed and were skipped",
		},
	)

	// EquitySnapshotsTotal counts equity history rows written.
	EquitySnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "equity_snapshots_total",
			Help: "Equity snapshots recorded",
		},
	)

	// EquitySkippedAccountsTotal counts accounts skipped for a tick because
	// a mark was missing for one of their open positions.
	EquitySkippedAccountsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "equity_skipped_accounts_total",
			Help: "Accounts skipped in an equity recorder tick due to a missing mark",
		},
	)

	// IngesterReconnectsTotal counts feed-ingester reconnect attempts by venue.
	IngesterReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingester_reconnects_total",
			Help: "Venue feed reconnect attempts",
		},
		[]string{"venue"},
	)

	// IngesterMessagesTotal counts feed-ingester messages received by venue.
	IngesterMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingester_messages_total",
			Help: "Venue feed messages received",
		},
		[]string{"venue"},
	)
)

func init() {
	prometheus.MustRegister(
		EngineTicksTotal,
		EngineOrdersFilledTotal,
		EngineTPSLTriggersTotal,
		EngineFillErrorsTotal,
		EquitySnapshotsTotal,
		EquitySkippedAccountsTotal,
		IngesterReconnectsTotal,
		IngesterMessagesTotal,
	)
}
