// Package metrics holds the prometheus collectors for client exchanges and the
// peer server.
package metrics

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the collectors of one process, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	operations       *prometheus.CounterVec
	exchangeDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry.
//
// Parameters:
//   - namespace: Metric name prefix, e.g. "eofclient"
//
// Returns:
//   - A new *Metrics
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Completed waits on driver operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		exchangeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "exchange_duration_seconds",
				Help:      "Duration of whole exchanges in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(m.operations)
	m.registry.MustRegister(m.exchangeDuration)

	return m
}

// Registry returns the registry the collectors live on, for serving or
// registering further collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOperation counts one finished wait.
func (m *Metrics) ObserveOperation(op, outcome string) {
	m.operations.WithLabelValues(op, outcome).Inc()
}

// ObserveExchange records the duration of one exchange. result is "complete"
// or "failed".
func (m *Metrics) ObserveExchange(result string, d time.Duration) {
	m.exchangeDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RegisterGauge adds a gauge whose value is read from fn at scrape time.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

// Snapshot gathers the registry into a flat map keyed by
// "name{label=value,...}". Counters and gauges map to their value, histograms
// to their sample count.
func (m *Metrics) Snapshot() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			sort.Strings(labels)

			key := mf.GetName()
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}

			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[key] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				out[key] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}

	return out, nil
}
