package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsReused  prometheus.Counter
	SessionsKilled  prometheus.Counter

	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	CommandTimeouts prometheus.Counter
	InterruptsSent  prometheus.Counter
	CommandsTracked prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests int64
	TotalErrors   int64
	TotalCommands int64
	TotalTimeouts int64
	TotalDuration float64 // sum of all request durations
	RequestCount  int64   // count for averaging
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runnerd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runnerd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runnerd_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runnerd_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Session metrics
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "runnerd_sessions_active",
				Help: "Number of live shell sessions in the pool",
			},
		),
		SessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "runnerd_sessions_created_total",
				Help: "Total number of shell sessions created",
			},
		),
		SessionsReused: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "runnerd_sessions_reused_total",
				Help: "Total number of idle-session reuses",
			},
		),
		SessionsKilled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "runnerd_sessions_killed_total",
				Help: "Total number of sessions killed on request",
			},
		),

		// Command metrics
		CommandsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runnerd_commands_total",
				Help: "Total number of commands by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		CommandDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runnerd_command_duration_seconds",
				Help:    "Foreground command wall time in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"shell"},
		),
		CommandTimeouts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "runnerd_command_timeouts_total",
				Help: "Total number of foreground commands that hit their timeout",
			},
		),
		InterruptsSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "runnerd_interrupts_sent_total",
				Help: "Total number of best-effort interrupts sent on timeout",
			},
		),
		CommandsTracked: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "runnerd_commands_tracked",
				Help: "Number of commands currently held by the registry",
			},
		),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "runnerd_ws_connections",
				Help: "Number of active WebSocket output streams",
			},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "runnerd_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordCommand records a finished dispatch by mode and outcome
func (m *Metrics) RecordCommand(mode, outcome string) {
	m.CommandsTotal.WithLabelValues(mode, outcome).Inc()
	m.mu.Lock()
	m.snapshot.TotalCommands++
	m.mu.Unlock()
}

// RecordCommandDuration records foreground command wall time
func (m *Metrics) RecordCommandDuration(shell string, duration time.Duration) {
	m.CommandDuration.WithLabelValues(shell).Observe(duration.Seconds())
}

// RecordTimeout records a foreground timeout
func (m *Metrics) RecordTimeout() {
	m.CommandTimeouts.Inc()
	m.mu.Lock()
	m.snapshot.TotalTimeouts++
	m.mu.Unlock()
}

// RecordInterrupt records a best-effort interrupt sent on timeout
func (m *Metrics) RecordInterrupt() {
	m.InterruptsSent.Inc()
}

// IncSessionsCreated increments the created-sessions counter
func (m *Metrics) IncSessionsCreated() {
	m.SessionsCreated.Inc()
}

// IncSessionsReused increments the reused-sessions counter
func (m *Metrics) IncSessionsReused() {
	m.SessionsReused.Inc()
}

// IncSessionsKilled increments the killed-sessions counter
func (m *Metrics) IncSessionsKilled() {
	m.SessionsKilled.Inc()
}

// SetSessionsActive sets the live session gauge
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
}

// SetCommandsTracked sets the registry size gauge
func (m *Metrics) SetCommandsTracked(count int) {
	m.CommandsTracked.Set(float64(count))
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Snapshot returns a copy of the current snapshot values
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
