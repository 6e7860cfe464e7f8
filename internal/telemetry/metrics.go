// Package telemetry owns the Prometheus collectors and the OpenTelemetry
// tracer provider. All Metrics methods are safe to call on a nil receiver
// so components can run without metrics in tests.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "gasbox"

// Script outcomes recorded by ObserveScript.
const (
	ScriptOK      = "ok"
	ScriptExit    = "exit"
	ScriptTimeout = "timeout"
	ScriptSpawn   = "spawn"
)

// Metrics holds every collector exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	grants         *prometheus.CounterVec
	behaviorMode   *prometheus.GaugeVec
	scriptRuns     *prometheus.CounterVec
	cleanupFails   prometheus.Counter
	rateLimited    *prometheus.CounterVec
	scratchSwept   prometheus.Counter
	auditListeners prometheus.Gauge
}

// NewMetrics creates the collectors on a fresh registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Wall time of a tool invocation including grant apply and revoke.",
			Buckets:   []float64{.005, .025, .1, .5, 1, 2.5, 5, 15, 30, 60, 120},
		}, []string{"tool"}),
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grants_total",
			Help:      "Capability grants applied, by behavior mode.",
		}, []string{"mode"}),
		behaviorMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "behavior_mode",
			Help:      "1 for the current mode of the behavior singleton, 0 otherwise.",
		}, []string{"mode"}),
		scriptRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "script_runs_total",
			Help:      "Script subprocess runs by outcome.",
		}, []string{"outcome"}),
		cleanupFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_failures_total",
			Help:      "Temporary script files that could not be removed.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Calls rejected by the rate limiter, by bucket.",
		}, []string{"bucket"}),
		scratchSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scratch_swept_total",
			Help:      "Orphaned script files removed by the scratch sweeper.",
		}),
		auditListeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_stream_listeners",
			Help:      "Connected audit stream WebSocket clients.",
		}),
	}

	reg.MustRegister(
		m.toolCalls, m.toolDuration, m.grants, m.behaviorMode,
		m.scriptRuns, m.cleanupFails, m.rateLimited, m.scratchSwept,
		m.auditListeners,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveToolCall records one finished invocation.
func (m *Metrics) ObserveToolCall(tool string, isError bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if isError {
		outcome = "error"
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveGrant counts an applied grant.
func (m *Metrics) ObserveGrant(mode string) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(mode).Inc()
}

// SetBehaviorMode marks mode as current among all known modes.
func (m *Metrics) SetBehaviorMode(mode string, known ...string) {
	if m == nil {
		return
	}
	for _, k := range known {
		m.behaviorMode.WithLabelValues(k).Set(0)
	}
	m.behaviorMode.WithLabelValues(mode).Set(1)
}

// ObserveScript counts a subprocess run by outcome.
func (m *Metrics) ObserveScript(outcome string) {
	if m == nil {
		return
	}
	m.scriptRuns.WithLabelValues(outcome).Inc()
}

// CleanupFailed counts a temp file that could not be removed.
func (m *Metrics) CleanupFailed() {
	if m == nil {
		return
	}
	m.cleanupFails.Inc()
}

// RateLimited counts a rejected call.
func (m *Metrics) RateLimited(bucket string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(bucket).Inc()
}

// ScratchSwept adds n removed orphan files.
func (m *Metrics) ScratchSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.scratchSwept.Add(float64(n))
}

// AuditListeners adjusts the audit stream client gauge by delta.
func (m *Metrics) AuditListeners(delta int) {
	if m == nil {
		return
	}
	m.auditListeners.Add(float64(delta))
}
