// Package metrics provides Prometheus metrics for CodeSherpa monitoring
// Exports HTTP, model gateway, agent, session memory, WebSocket, and business metrics
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "codesherpa"

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds all Prometheus metric collectors for CodeSherpa
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPResponseSize     *prometheus.HistogramVec

	// Business Metrics
	TotalUsersGauge    prometheus.Gauge
	TotalProjectsGauge prometheus.Gauge
	TotalAgentsGauge   prometheus.Gauge
	TotalChatsGauge    prometheus.Gauge
	SignupsTotal       prometheus.Counter

	// Model Gateway Metrics
	GatewayCallsTotal     *prometheus.CounterVec
	GatewayCallDuration   *prometheus.HistogramVec
	GatewayFallbacksTotal *prometheus.CounterVec

	// Agent Metrics
	AgentInvocationsTotal *prometheus.CounterVec
	AgentDuration         *prometheus.HistogramVec
	OrchestratorRoutes    *prometheus.CounterVec

	// Session Memory Metrics
	MemoryOperationsTotal   *prometheus.CounterVec
	MemoryDegradationsTotal prometheus.Counter

	// WebSocket Metrics
	WebSocketConnectionsGauge prometheus.Gauge
	WebSocketMessagesTotal    *prometheus.CounterVec

	// GitHub review pipeline
	PRReviewsTotal *prometheus.CounterVec

	// Database Metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// System Metrics
	BuildInfo    *prometheus.GaugeVec
	StartupTime  prometheus.Gauge
	GoroutineNum prometheus.Gauge
}

// Get returns the singleton Metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

// newMetrics creates and registers all Prometheus metrics
func newMetrics() *Metrics {
	m := &Metrics{}

	// HTTP Metrics
	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by endpoint, method, and status code",
		},
		[]string{"endpoint", "method", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "method"},
	)

	m.HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	m.HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"endpoint"},
	)

	// Business Metrics
	m.TotalUsersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "total_users",
			Help:      "Total number of registered users",
		},
	)

	m.TotalProjectsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "total_projects",
			Help:      "Total number of projects",
		},
	)

	m.TotalAgentsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "total_agents",
			Help:      "Total number of user-defined agents",
		},
	)

	m.TotalChatsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "total_chats",
			Help:      "Total number of stored chat messages",
		},
	)

	m.SignupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "signups_total",
			Help:      "Total number of user registrations",
		},
	)

	// Model Gateway Metrics
	m.GatewayCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Total model gateway calls by provider, mode, and status",
		},
		[]string{"provider", "mode", "status"},
	)

	m.GatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Model gateway call duration in seconds",
			Buckets:   []float64{.01, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "mode"},
	)

	m.GatewayFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "fallbacks_total",
			Help:      "Total live calls answered by the mock generator, by provider and reason",
		},
		[]string{"provider", "reason"},
	)

	// Agent Metrics
	m.AgentInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "invocations_total",
			Help:      "Total agent invocations by agent and outcome",
		},
		[]string{"agent", "outcome"},
	)

	m.AgentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "duration_seconds",
			Help:      "Agent processing duration in seconds",
			Buckets:   []float64{.001, .01, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"agent"},
	)

	m.OrchestratorRoutes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "routes_total",
			Help:      "Total orchestrator routing decisions by target",
		},
		[]string{"target"},
	)

	// Session Memory Metrics
	m.MemoryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "operations_total",
			Help:      "Total session memory operations by operation, backend, and result",
		},
		[]string{"operation", "backend", "result"},
	)

	m.MemoryDegradationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "degradations_total",
			Help:      "Number of times session memory fell back to the in-process store",
		},
	)

	// WebSocket Metrics
	m.WebSocketConnectionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of active WebSocket connections",
		},
	)

	m.WebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Total WebSocket frames by type and direction",
		},
		[]string{"type", "direction"},
	)

	m.PRReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "github",
			Name:      "pr_reviews_total",
			Help:      "Total pull request reviews by result",
		},
		[]string{"result"},
	)

	// Database Metrics
	m.DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "connections_active",
			Help:      "Number of active database connections",
		},
	)

	m.DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "connections_idle",
			Help:      "Number of idle database connections",
		},
	)

	// System Metrics
	m.BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "environment"},
	)

	m.StartupTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "startup_time_seconds",
			Help:      "Unix timestamp of service startup",
		},
	)
	m.StartupTime.Set(float64(time.Now().Unix()))

	m.GoroutineNum = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Number of running goroutines",
		},
	)

	return m
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(endpoint, method string, statusCode int, duration time.Duration, responseSize int) {
	status := statusCodeToLabel(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(endpoint).Observe(float64(responseSize))
}

// RecordGatewayCall records a model gateway call
func (m *Metrics) RecordGatewayCall(provider, mode, status string, duration time.Duration) {
	m.GatewayCallsTotal.WithLabelValues(provider, mode, status).Inc()
	m.GatewayCallDuration.WithLabelValues(provider, mode).Observe(duration.Seconds())
}

// RecordGatewayFallback records a live call that was answered by the mock generator
func (m *Metrics) RecordGatewayFallback(provider, reason string) {
	m.GatewayFallbacksTotal.WithLabelValues(provider, reason).Inc()
}

// RecordAgentInvocation records one agent Process call
func (m *Metrics) RecordAgentInvocation(agent, outcome string, duration time.Duration) {
	m.AgentInvocationsTotal.WithLabelValues(agent, outcome).Inc()
	m.AgentDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordRoute records an orchestrator routing decision
func (m *Metrics) RecordRoute(target string) {
	m.OrchestratorRoutes.WithLabelValues(target).Inc()
}

// RecordMemoryOperation records a session memory read or write
func (m *Metrics) RecordMemoryOperation(operation, backend, result string) {
	m.MemoryOperationsTotal.WithLabelValues(operation, backend, result).Inc()
}

// RecordMemoryDegradation records the one-way switch to the in-process store
func (m *Metrics) RecordMemoryDegradation() {
	m.MemoryDegradationsTotal.Inc()
}

// RecordWebSocketConnection records a WebSocket connection change
func (m *Metrics) RecordWebSocketConnection(delta int) {
	m.WebSocketConnectionsGauge.Add(float64(delta))
}

// RecordWebSocketMessage records a WebSocket frame
func (m *Metrics) RecordWebSocketMessage(msgType, direction string) {
	m.WebSocketMessagesTotal.WithLabelValues(msgType, direction).Inc()
}

// RecordPRReview records the result of a pull request review
func (m *Metrics) RecordPRReview(result string) {
	m.PRReviewsTotal.WithLabelValues(result).Inc()
}

// RecordSignup records a new user signup
func (m *Metrics) RecordSignup() {
	m.SignupsTotal.Inc()
}

// SetBuildInfo sets build information
func (m *Metrics) SetBuildInfo(version, environment string) {
	m.BuildInfo.WithLabelValues(version, environment).Set(1)
}

// Helper function to convert status code to label
func statusCodeToLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
