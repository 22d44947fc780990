// Package metrics exposes Prometheus instrumentation for the tool API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the instrument set on its own registry so tests can run
// side by side without collector collisions.
type Metrics struct {
	registry *prometheus.Registry

	ToolInvocations *prometheus.CounterVec
	ToolDuration    *prometheus.HistogramVec
	RestartStages   *prometheus.CounterVec
	ProcessUp       prometheus.Gauge
}

// New creates the instrument set.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ToolInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gnbctl",
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool name and outcome.",
		}, []string{"tool", "status"}),
		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gnbctl",
			Name:      "tool_duration_seconds",
			Help:      "Tool handling latency. Restart durations dominate the long tail.",
			Buckets:   []float64{.005, .05, .25, 1, 5, 15, 30, 60, 120},
		}, []string{"tool"}),
		RestartStages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gnbctl",
			Name:      "restart_stage_outcomes_total",
			Help:      "Restart pipeline stage outcomes.",
		}, []string{"stage", "outcome"}),
		ProcessUp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gnbctl",
			Name:      "gnb_process_up",
			Help:      "Whether a live gNB process was seen on the last status query.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTool records one tool invocation.
func (m *Metrics) ObserveTool(tool, status string, seconds float64) {
	m.ToolInvocations.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(seconds)
}
