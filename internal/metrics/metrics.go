package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics for the trading core.
type Metrics struct {
	PositionsOpened     prometheus.Counter
	PositionsClosed     prometheus.Counter
	PositionsLiquidated prometheus.Counter
	SweepRuns           prometheus.Counter
	SweepDuration       prometheus.Histogram
	OracleFailures      prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PositionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperperps_positions_opened_total",
			Help: "Positions opened",
		}),
		PositionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperperps_positions_closed_total",
			Help: "Positions closed by users",
		}),
		PositionsLiquidated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperperps_positions_liquidated_total",
			Help: "Positions force-closed by the liquidation sweep",
		}),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperperps_sweep_runs_total",
			Help: "Liquidation sweep invocations",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "paperperps_sweep_duration_seconds",
			Help:    "Liquidation sweep wall time",
			Buckets: prometheus.DefBuckets,
		}),
		OracleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperperps_oracle_failures_total",
			Help: "Mark price fetches that failed",
		}),
	}
	reg.MustRegister(m.PositionsOpened, m.PositionsClosed, m.PositionsLiquidated, m.SweepRuns, m.SweepDuration, m.OracleFailures)
	return m
}
