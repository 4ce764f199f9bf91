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
	SessionActive     prometheus.Gauge
	SessionsStarted   prometheus.Counter
	SessionsStopped   prometheus.Counter
	StateTransitions  *prometheus.CounterVec
	PauseDurationSecs prometheus.Histogram

	// Focus metrics
	FocusEvents        *prometheus.CounterVec
	FocusEventsDropped prometheus.Counter
	FocusVerifyFailed  prometheus.Counter

	// Action metrics
	ActionsExecuted    *prometheus.CounterVec
	ActionDuration     *prometheus.HistogramVec
	ValidationFailures *prometheus.CounterVec

	// Health metrics
	HealthChecks *prometheus.CounterVec

	// Snapshot metrics
	SnapshotsSaved    prometheus.Counter
	SnapshotsRestored prometheus.Counter

	// Registry metrics
	RegistryApps prometheus.Gauge

	// Notification metrics
	Notifications *prometheus.CounterVec

	// Component operation metrics
	OperationCalls    *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests   int64
	TotalErrors     int64
	FocusEvents     int64
	ActionsExecuted int64
	ActionsFailed   int64
	TotalDuration   float64 // sum of all request durations
	RequestCount    int64   // count for averaging
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replayd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replayd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replayd_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replayd_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Session metrics
		SessionActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "replayd_session_active",
				Help: "Whether a playback session is currently active (0 or 1)",
			},
		),
		SessionsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "replayd_sessions_started_total",
				Help: "Total number of playback sessions started",
			},
		),
		SessionsStopped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "replayd_sessions_stopped_total",
				Help: "Total number of playback sessions stopped",
			},
		),
		StateTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replayd_state_transitions_total",
				Help: "Total number of session state transitions",
			},
			[]string{"to_state", "reason"},
		),
		PauseDurationSecs: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "replayd_pause_duration_seconds",
				Help:    "Duration of individual pause intervals in seconds",
				Buckets: []float64{.1, .5, 1, 5, 15, 60, 300, 1800},
			},
		),

		// Focus metrics
		FocusEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replayd_focus_events_total",
				Help: "Total number of focus events observed",
			},
			[]string{"type"},
		),
		FocusEventsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "replayd_focus_events_dropped_total",
				Help: "Total number of focus events dropped on a full channel",
			},
		),
		FocusVerifyFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "replayd_focus_verification_failures_total",
				Help: "Total number of pre-action focus verification failures",
			},
		),

		// Action metrics
		ActionsExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replayd_actions_executed_total",
				Help: "Total number of automation actions executed",
			},
			[]string{"type", "status"},
		),
		ActionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replayd_action_duration_seconds",
				Help:    "Action injection duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"type"},
		),
		ValidationFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replayd_validation_failures_total",
				Help: "Total number of action validation failures",
			},
			[]string{"reason"},
		),

		// Health metrics
		HealthChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replayd_health_checks_total",
				Help: "Total number of target application health checks",
			},
			[]string{"check", "result"},
		),

		// Snapshot metrics
		SnapshotsSaved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "replayd_snapshots_saved_total",
				Help: "Total number of progress snapshots saved",
			},
		),
		SnapshotsRestored: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "replayd_snapshots_restored_total",
				Help: "Total number of progress snapshots restored",
			},
		),

		// Registry metrics
		RegistryApps: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "replayd_registry_apps",
				Help: "Number of registered applications",
			},
		),

		// Notification metrics
		Notifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replayd_notifications_total",
				Help: "Total number of notifications dispatched",
			},
			[]string{"sink", "kind", "status"},
		),

		// Component operation metrics
		OperationCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replayd_operation_calls_total",
				Help: "Total number of component operations",
			},
			[]string{"component", "op", "status"},
		),
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replayd_operation_duration_seconds",
				Help:    "Component operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"component", "op"},
		),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "replayd_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replayd_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "replayd_uptime_seconds",
				Help: "Daemon uptime in seconds",
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

// RecordTransition records a session state transition
func (m *Metrics) RecordTransition(toState, reason string) {
	m.StateTransitions.WithLabelValues(toState, reason).Inc()
}

// RecordFocusEvent records one observed focus event
func (m *Metrics) RecordFocusEvent(eventType string) {
	m.FocusEvents.WithLabelValues(eventType).Inc()

	m.mu.Lock()
	m.snapshot.FocusEvents++
	m.mu.Unlock()
}

// RecordAction records an executed automation action
func (m *Metrics) RecordAction(actionType, status string, duration time.Duration) {
	m.ActionsExecuted.WithLabelValues(actionType, status).Inc()
	m.ActionDuration.WithLabelValues(actionType).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.ActionsExecuted++
	if status != "success" {
		m.snapshot.ActionsFailed++
	}
	m.mu.Unlock()
}

// RecordValidationFailure records an action rejected by the validator
func (m *Metrics) RecordValidationFailure(reason string) {
	m.ValidationFailures.WithLabelValues(reason).Inc()
}

// RecordHealthCheck records one health probe outcome
func (m *Metrics) RecordHealthCheck(check string, healthy bool) {
	result := "healthy"
	if !healthy {
		result = "unhealthy"
	}
	m.HealthChecks.WithLabelValues(check, result).Inc()
}

// RecordNotification records a notification dispatch attempt
func (m *Metrics) RecordNotification(sink, kind, status string) {
	m.Notifications.WithLabelValues(sink, kind, status).Inc()
}

// RecordOperation records a component operation
func (m *Metrics) RecordOperation(component, op, status string, duration time.Duration) {
	m.OperationCalls.WithLabelValues(component, op, status).Inc()
	m.OperationDuration.WithLabelValues(component, op).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// RecordPauseInterval records how long one pause interval lasted
func (m *Metrics) RecordPauseInterval(d time.Duration) {
	m.PauseDurationSecs.Observe(d.Seconds())
}

// SetSessionActive flags whether a session currently exists
func (m *Metrics) SetSessionActive(active bool) {
	if active {
		m.SessionActive.Set(1)
	} else {
		m.SessionActive.Set(0)
	}
}

// IncSessionsStarted increments the sessions started counter
func (m *Metrics) IncSessionsStarted() {
	m.SessionsStarted.Inc()
}

// IncSessionsStopped increments the sessions stopped counter
func (m *Metrics) IncSessionsStopped() {
	m.SessionsStopped.Inc()
}

// IncFocusEventsDropped increments the dropped focus event counter
func (m *Metrics) IncFocusEventsDropped() {
	m.FocusEventsDropped.Inc()
}

// IncFocusVerifyFailed increments the focus verification failure counter
func (m *Metrics) IncFocusVerifyFailed() {
	m.FocusVerifyFailed.Inc()
}

// IncSnapshotsSaved increments the snapshots saved counter
func (m *Metrics) IncSnapshotsSaved() {
	m.SnapshotsSaved.Inc()
}

// IncSnapshotsRestored increments the snapshots restored counter
func (m *Metrics) IncSnapshotsRestored() {
	m.SnapshotsRestored.Inc()
}

// SetRegistryApps sets the number of registered applications
func (m *Metrics) SetRegistryApps(count int) {
	m.RegistryApps.Set(float64(count))
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
