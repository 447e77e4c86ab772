// Package metrics exposes trade lifecycle activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustyeddy/tradebook/trade"
)

// Metrics implements trade.Observer.
type Metrics struct {
	OrdersPlaced      *prometheus.CounterVec // labels: role
	FillsTotal        prometheus.Counter
	OrdersClosed      *prometheus.CounterVec // labels: status
	StatusTransitions *prometheus.CounterVec // labels: from, to
	PersistFailures   prometheus.Counter
	RecordsSkipped    prometheus.Counter
	RefreshRuns       *prometheus.CounterVec // labels: result=ok|error
	OpenTrades        prometheus.Gauge
}

var _ trade.Observer = (*Metrics)(nil)

// New creates the metrics and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebook_orders_placed_total",
			Help: "Orders accepted by the broker, by role",
		}, []string{"role"}),
		FillsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebook_fills_total",
			Help: "Fills ingested into trade records",
		}),
		OrdersClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebook_orders_closed_total",
			Help: "Tracked orders that stopped working, by final status",
		}, []string{"status"}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebook_status_transitions_total",
			Help: "Trade status changes",
		}, []string{"from", "to"}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebook_persist_failures_total",
			Help: "Trade state writes that failed",
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebook_records_skipped_total",
			Help: "Trade files skipped while scanning the store",
		}),
		RefreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebook_refresh_runs_total",
			Help: "Scheduled refresh passes",
		}, []string{"result"}),
		OpenTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebook_open_trades",
			Help: "Trades with live orders or positions at the last refresh",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.OrdersPlaced,
			m.FillsTotal,
			m.OrdersClosed,
			m.StatusTransitions,
			m.PersistFailures,
			m.RecordsSkipped,
			m.RefreshRuns,
			m.OpenTrades,
		)
	}
	return m
}

func (m *Metrics) OrderPlaced(role trade.Role) {
	m.OrdersPlaced.WithLabelValues(string(role)).Inc()
}

func (m *Metrics) FillsIngested(n int) {
	m.FillsTotal.Add(float64(n))
}

func (m *Metrics) OrderClosed(status trade.OrderStatus) {
	m.OrdersClosed.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) StatusChanged(from, to trade.Status) {
	m.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) PersistFailed() {
	m.PersistFailures.Inc()
}

func (m *Metrics) Skipped(n int) {
	m.RecordsSkipped.Add(float64(n))
}
