package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/tradesync/internal/model"
)

const namespace = "tradesync"

// Metrics records cycle results. It satisfies scheduler.Reporter.
type Metrics struct {
	reg prometheus.Registerer

	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	accounts      *prometheus.CounterVec
	trades        *prometheus.CounterVec
	failures      *prometheus.CounterVec
	lastSuccess   *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reg: reg,
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed sync cycles",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a sync cycle",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		accounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_syncs_total",
			Help:      "Account syncs by final state",
		}, []string{"account", "state"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Trades by outcome",
		}, []string{"account", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failures by error kind",
		}, []string{"kind"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "account_last_success_timestamp_seconds",
			Help:      "Unix time of the last account sync that reached done",
		}, []string{"account"}),
	}

	reg.MustRegister(m.cycles, m.cycleDuration, m.accounts, m.trades, m.failures, m.lastSuccess)
	return m
}

// WatchInFlight exports the current number of journal writes in flight.
func (m *Metrics) WatchInFlight(fn func() int64) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "writes_in_flight",
		Help:      "Journal page creations currently in flight",
	}, func() float64 {
		return float64(fn())
	}))
}

// Report folds a cycle result into the collectors.
func (m *Metrics) Report(_ context.Context, result model.CycleResult) error {
	m.cycles.Inc()
	m.cycleDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())

	for _, a := range result.Accounts {
		m.accounts.WithLabelValues(a.Account, a.State.String()).Inc()

		m.trades.WithLabelValues(a.Account, "fetched").Add(float64(a.Fetched))
		m.trades.WithLabelValues(a.Account, "duplicate").Add(float64(a.Duplicate))
		m.trades.WithLabelValues(a.Account, "created").Add(float64(a.Created))
		m.trades.WithLabelValues(a.Account, "failed").Add(float64(a.Failed))

		if a.Err != nil {
			m.failures.WithLabelValues(string(a.Err.Kind)).Inc()
		}
		for _, f := range a.Failures {
			m.failures.WithLabelValues(string(f.Kind)).Inc()
		}

		if a.OK() {
			m.lastSuccess.WithLabelValues(a.Account).Set(float64(a.StartedAt.Add(a.Duration).Unix()))
		}
	}
	return nil
}
