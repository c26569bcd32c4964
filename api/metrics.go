package api

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rony4d/go-opera-forksim/consensus"
	"github.com/rony4d/go-opera-forksim/rules"
)

const namespace = "forksim"

// Metrics holds the collectors of one server. Each server owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	decisions       *prometheus.CounterVec
	slashes         *prometheus.CounterVec
	sessions        prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "path"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "consensus",
				Name:      "fork_decisions_total",
				Help:      "Fork validation verdicts by defense mode, deciding rule and result",
			},
			[]string{"mode", "rule", "accepted"},
		),
		slashes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "consensus",
				Name:      "slashes_total",
				Help:      "Identities slashed after rejected forks",
			},
			[]string{"mode"},
		),
		sessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "sessions",
				Help:      "Number of live simulation sessions",
			},
		),
	}
}

// ObserveVerdict counts a fork decision and its slashes.
func (m *Metrics) ObserveVerdict(mode rules.DefenseMode, v consensus.Verdict) {
	m.decisions.WithLabelValues(mode.String(), string(v.Rule), strconv.FormatBool(v.Accepted)).Inc()
	if n := len(v.Slashes); n > 0 {
		m.slashes.WithLabelValues(mode.String()).Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
