// Package metrics exports pipeline counters in Prometheus format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"RedditMonitor/internal/domain"
)

const namespace = "reddit_monitor"

// Metrics holds every collector of the monitor. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ItemsFetched  *prometheus.CounterVec
	ItemsExcluded prometheus.Counter
	ItemsRelevant *prometheus.CounterVec
	Batches       *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	LedgerSize    prometheus.Gauge
	RunDuration   prometheus.Histogram
	LastRun       prometheus.Gauge
}

// New registers collectors on a private registry, together with Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		ItemsFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_fetched_total",
			Help:      "New items returned by the feed source",
		}, []string{"type"}),
		ItemsExcluded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_excluded_total",
			Help:      "Items dropped by exclusion keywords",
		}),
		ItemsRelevant: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_relevant_total",
			Help:      "Items the classifier marked relevant",
		}, []string{"type"}),
		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Classification batches by outcome",
		}, []string{"outcome"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by outcome",
		}, []string{"outcome"}),
		LedgerSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_entries",
			Help:      "Ids held by the processed ledger after the last checkpoint",
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full pipeline run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		registry: reg,
	}
}

// Registry exposes the registry backing this set of collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveFetched(items []domain.Item) {
	if m == nil {
		return
	}
	for t, n := range domain.CountByType(items) {
		m.ItemsFetched.WithLabelValues(string(t)).Add(float64(n))
	}
}

func (m *Metrics) ObserveExcluded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsExcluded.Add(float64(n))
}

func (m *Metrics) ObserveRelevant(items []domain.Item) {
	if m == nil {
		return
	}
	for t, n := range domain.CountByType(items) {
		m.ItemsRelevant.WithLabelValues(string(t)).Add(float64(n))
	}
}

// ObserveBatch counts a batch as "ok" or "failed".
func (m *Metrics) ObserveBatch(failed bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	m.Batches.WithLabelValues(outcome).Inc()
}

// ObserveNotification counts a delivery as "sent" or "failed".
func (m *Metrics) ObserveNotification(err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.Notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetLedgerSize(n int) {
	if m == nil {
		return
	}
	m.LedgerSize.Set(float64(n))
}

// ObserveRun records how long a run took and when it finished.
func (m *Metrics) ObserveRun(started, finished time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(finished.Sub(started).Seconds())
	m.LastRun.Set(float64(finished.Unix()))
}
