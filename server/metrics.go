package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/taskexec/backend"
	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/task"
)

// Metrics holds the Prometheus collectors reported by the server.
type Metrics struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	executions   *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. It panics
// on duplicate registration, like promauto; pass a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskexec",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route, method, and status code.",
			},
			[]string{"route", "method", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taskexec",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskexec",
				Subsystem: "code",
				Name:      "executions_total",
				Help:      "Snippet executions by outcome: ok or the fault kind.",
			},
			[]string{"outcome"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskexec",
				Subsystem: "tools",
				Name:      "calls_total",
				Help:      "Tool executions by tool ID and result.",
			},
			[]string{"tool", "result"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taskexec",
				Subsystem: "tools",
				Name:      "call_duration_seconds",
				Help:      "Tool execution latency by tool ID.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
	}
	reg.MustRegister(m.requests, m.latency, m.executions, m.toolCalls, m.toolDuration)
	return m
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveExecution records the outcome of one snippet run.
func (m *Metrics) ObserveExecution(res code.ExecutionResult) {
	m.ObserveFault(res.Error)
}

// ObserveFault records a snippet run that ended with f, or succeeded when f
// is nil.
func (m *Metrics) ObserveFault(f *code.Fault) {
	if m == nil {
		return
	}
	outcome := "ok"
	if f != nil {
		outcome = string(f.Kind)
	}
	m.executions.WithLabelValues(outcome).Inc()
}

// ObserveTool records one tool execution. Its signature matches
// backend.Observer so it can be handed to the agent directly.
func (m *Metrics) ObserveTool(toolID string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolID, toolResult(err)).Inc()
	m.toolDuration.WithLabelValues(toolID).Observe(elapsed.Seconds())
}

var _ backend.Observer = (*Metrics)(nil).ObserveTool

func toolResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, backend.ErrInvalidArgs):
		return "invalid"
	case errors.Is(err, task.ErrNotFound), errors.Is(err, backend.ErrToolNotFound):
		return "not_found"
	default:
		return "error"
	}
}
