package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the extension host. Each
// instance carries its own registry so tests can construct independent
// collectors.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Installer metrics
	InstallsTotal   *prometheus.CounterVec
	UninstallsTotal *prometheus.CounterVec

	// Registry metrics
	ExtensionsInstalled prometheus.Gauge

	// Modal metrics
	ModalsOpen      prometheus.Gauge
	ModalsMinimized prometheus.Gauge

	// Bridge metrics
	BridgeMessages *prometheus.CounterVec
	BridgeDropped  prometheus.Counter
	DialogsPending prometheus.Gauge

	// Timer metrics
	TimersRunning    prometheus.Gauge
	TimerCompletions prometheus.Counter

	// WebSocket metrics
	WSConnections *prometheus.GaugeVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exthost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		InstallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_installs_total",
				Help: "Total number of extension install attempts",
			},
			[]string{"source", "result"},
		),
		UninstallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_uninstalls_total",
				Help: "Total number of extension uninstall attempts",
			},
			[]string{"result"},
		),

		ExtensionsInstalled: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_extensions_installed",
				Help: "Number of installed extensions",
			},
		),

		ModalsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_modals_open",
				Help: "Number of open extension modals",
			},
		),
		ModalsMinimized: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_modals_minimized",
				Help: "Number of minimized extension modals",
			},
		),

		BridgeMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_bridge_messages_total",
				Help: "Total number of bridge messages by type",
			},
			[]string{"direction", "type"},
		),
		BridgeDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "exthost_bridge_dropped_total",
				Help: "Total number of bridge messages dropped (unknown type or stale id)",
			},
		),
		DialogsPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_dialogs_pending",
				Help: "Number of outstanding confirm/prompt dialog requests",
			},
		),

		TimersRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_timers_running",
				Help: "Number of running timer items",
			},
		),
		TimerCompletions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "exthost_timer_completions_total",
				Help: "Total number of countdown completions",
			},
		),

		WSConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "exthost_ws_connections",
				Help: "Number of active WebSocket connections by surface kind",
			},
			[]string{"surface"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_uptime_seconds",
				Help: "Host uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// Handler returns the Prometheus exposition handler for this collector.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordInstall records an install attempt. Source is "zip" or "url".
func (m *Metrics) RecordInstall(source string, err error) {
	m.InstallsTotal.WithLabelValues(source, resultLabel(err)).Inc()
}

// RecordUninstall records an uninstall attempt.
func (m *Metrics) RecordUninstall(err error) {
	m.UninstallsTotal.WithLabelValues(resultLabel(err)).Inc()
}

// RecordBridgeMessage records a bridge message.
func (m *Metrics) RecordBridgeMessage(direction, msgType string) {
	m.BridgeMessages.WithLabelValues(direction, msgType).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
