package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Dispatcher's Prometheus instrumentation: how many
// mutating operations ran, split by category and outcome, and how long they
// took. The core serves these at /metrics on its debug HTTP surface,
// alongside the SSE mirror, when started with --debug-addr (§6).
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	busy       *prometheus.GaugeVec
}

// NewMetrics registers the Dispatcher's collectors with prometheus's default
// registry. Call NewMetricsWith to use a dedicated registry instead (tests,
// or multiple Dispatchers in one process).
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the Dispatcher's collectors with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codetracer",
			Subsystem: "dispatcher",
			Name:      "operations_total",
			Help:      "Mutating operations processed by the Dispatcher, by category, label, and outcome.",
		}, []string{"category", "op", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codetracer",
			Subsystem: "dispatcher",
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock duration of Dispatcher operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"category", "op"}),
		busy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "codetracer",
			Subsystem: "dispatcher",
			Name:      "category_busy",
			Help:      "1 while a category currently has a mutating operation in flight, else 0.",
		}, []string{"category"}),
	}
}

func (m *Metrics) setBusy(category Category, busy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if busy {
		v = 1.0
	}
	m.busy.WithLabelValues(category.String()).Set(v)
}

func (m *Metrics) observe(category Category, label string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(category.String(), label, outcome).Inc()
	m.duration.WithLabelValues(category.String(), label).Observe(d.Seconds())
}
