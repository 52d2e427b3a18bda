package monitor

import (
	"net/http"

	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics exported by the monitor.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal        *prometheus.CounterVec
	CycleDuration      prometheus.Histogram
	Positions          *prometheus.GaugeVec
	PortfolioValueUSD  prometheus.Gauge
	PendingFeesUSD     prometheus.Gauge
	Decisions          *prometheus.CounterVec
	EstimatedGasUSD    prometheus.Gauge
	LastCycleTimestamp prometheus.Gauge
}

// NewMetrics creates the metrics on a private registry, together with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clmm_monitor_cycles_total",
				Help: "Total number of monitor cycles by result",
			},
			[]string{"result"},
		),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "clmm_monitor_cycle_duration_seconds",
				Help:    "Duration of a monitor cycle in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		Positions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clmm_monitor_positions",
				Help: "Positions seen in the last cycle by range state",
			},
			[]string{"state"},
		),

		PortfolioValueUSD: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clmm_monitor_portfolio_value_usd",
				Help: "Total USD value of all positions in the last cycle",
			},
		),

		PendingFeesUSD: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clmm_monitor_pending_fees_usd",
				Help: "Total uncollected fees in USD in the last cycle",
			},
		),

		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clmm_monitor_position_outcomes_total",
				Help: "Per-position cycle outcomes by status",
			},
			[]string{"status"},
		),

		EstimatedGasUSD: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clmm_monitor_estimated_gas_usd",
				Help: "Current estimated cost of one close-and-reopen in USD",
			},
		),

		LastCycleTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clmm_monitor_last_cycle_timestamp_seconds",
				Help: "Unix time at which the last cycle started",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CyclesTotal,
		m.CycleDuration,
		m.Positions,
		m.PortfolioValueUSD,
		m.PendingFeesUSD,
		m.Decisions,
		m.EstimatedGasUSD,
		m.LastCycleTimestamp,
	)
	return m
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(summary types.CycleSummary, gasCostUSD float64) {
	if m == nil {
		return
	}

	result := "ok"
	if summary.FetchError != "" {
		result = "fetch_error"
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(summary.Duration.Seconds())
	m.LastCycleTimestamp.Set(float64(summary.StartedAt.Unix()))
	m.EstimatedGasUSD.Set(gasCostUSD)

	if summary.FetchError != "" {
		return
	}

	m.Positions.WithLabelValues("in_range").Set(float64(summary.InRange()))
	m.Positions.WithLabelValues("out_of_range").Set(float64(summary.OutOfRange))
	m.PortfolioValueUSD.Set(summary.TotalValueUSD)
	m.PendingFeesUSD.Set(summary.TotalPendingFeesUSD)
	for _, r := range summary.Results {
		m.Decisions.WithLabelValues(string(r.Status)).Inc()
	}
}
