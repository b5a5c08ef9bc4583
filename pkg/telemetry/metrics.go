package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for command dispatch on both sides of
// the engine boundary.
type Metrics struct {
	config MetricsConfig

	// Client-side gateway metrics
	commandsSubmitted *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	commandErrors     *prometheus.CounterVec
	commandsInFlight  prometheus.Gauge

	// Engine-side metrics
	engineCommands *prometheus.CounterVec
	engineDuration *prometheus.HistogramVec
	logins         *prometheus.CounterVec

	// HTTP transport metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op instance; every Record method checks for nil collectors
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		commandsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "commands_submitted_total",
				Help:      "Total number of commands submitted to the engine",
			},
			[]string{"resource", "operation"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "command_duration_seconds",
				Help:      "Round-trip duration of engine commands in seconds",
				Buckets:   buckets,
			},
			[]string{"resource", "operation"},
		),
		commandErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "command_errors_total",
				Help:      "Total number of failed commands by error kind",
			},
			[]string{"resource", "operation", "kind"},
		),
		commandsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "commands_in_flight",
				Help:      "Commands currently waiting on the engine",
			},
		),

		engineCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "commands_total",
				Help:      "Total number of commands executed by the engine",
			},
			[]string{"resource", "operation", "status"},
		),
		engineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "command_duration_seconds",
				Help:      "Duration of command execution inside the engine in seconds",
				Buckets:   buckets,
			},
			[]string{"resource", "operation"},
		),
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "logins_total",
				Help:      "Total number of access token logins",
			},
			[]string{"status"},
		),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   buckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.commandsSubmitted,
		m.commandDuration,
		m.commandErrors,
		m.commandsInFlight,
		m.engineCommands,
		m.engineDuration,
		m.logins,
		m.httpRequests,
		m.httpDuration,
	)

	return m, nil
}

// Gateway Metrics

// RecordCommandStarted counts a submitted command and marks it in flight.
func (m *Metrics) RecordCommandStarted(resource, operation string) {
	if m == nil || m.commandsSubmitted == nil {
		return
	}
	m.commandsSubmitted.WithLabelValues(resource, operation).Inc()
	m.commandsInFlight.Inc()
}

// RecordCommandCompleted records the round trip of a command. An empty kind
// means the command succeeded.
func (m *Metrics) RecordCommandCompleted(resource, operation, kind string, duration time.Duration) {
	if m == nil || m.commandDuration == nil {
		return
	}
	m.commandsInFlight.Dec()
	m.commandDuration.WithLabelValues(resource, operation).Observe(duration.Seconds())
	if kind != "" {
		m.commandErrors.WithLabelValues(resource, operation, kind).Inc()
	}
}

// Engine Metrics

// RecordEngineCommand records a command executed by the engine.
func (m *Metrics) RecordEngineCommand(resource, operation string, success bool, duration time.Duration) {
	if m == nil || m.engineCommands == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.engineCommands.WithLabelValues(resource, operation, status).Inc()
	m.engineDuration.WithLabelValues(resource, operation).Observe(duration.Seconds())
}

// RecordLogin records an access token login attempt.
func (m *Metrics) RecordLogin(success bool) {
	if m == nil || m.logins == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.logins.WithLabelValues(status).Inc()
}

// HTTP Metrics

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
