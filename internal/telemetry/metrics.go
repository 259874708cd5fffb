package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeNotFound = "not_found"
)

var (
	registry = prometheus.NewRegistry()

	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tasqmcp",
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool name and result status.",
		},
		[]string{"tool", "status"},
	)
	toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tasqmcp",
			Name:      "tool_duration_seconds",
			Help:      "Tool call duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"tool"},
	)
	tasqExecs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tasqmcp",
			Name:      "tasq_exec_total",
			Help:      "tasq subprocess invocations by subcommand and outcome.",
		},
		[]string{"subcommand", "outcome"},
	)
)

func init() {
	registry.MustRegister(
		toolCalls,
		toolDuration,
		tasqExecs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func IncToolCall(toolName, status string) {
	toolCalls.WithLabelValues(toolName, status).Inc()
}

func ObserveToolDuration(toolName string, d time.Duration) {
	toolDuration.WithLabelValues(toolName).Observe(d.Seconds())
}

func IncTasqExec(subcommand, outcome string) {
	tasqExecs.WithLabelValues(subcommand, outcome).Inc()
}

// Registry exposes the package registry, mainly for tests.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
