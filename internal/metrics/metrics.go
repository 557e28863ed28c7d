// Package metrics exposes the realtime pipeline's Prometheus metrics: one
// struct bundling CounterVec/GaugeVec/HistogramVec fields built via
// promauto, plus small methods recording each event kind. Every Collector
// owns a private prometheus.Registry so multiple Session Watchers can run
// in one process without colliding on metric names.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mgmacleod/claude-sessions/internal/event"
)

// toolDurationBuckets spans sub-second tool calls out to a minute.
var toolDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Collector bundles the pipeline's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	MessagesTotal      *prometheus.CounterVec
	ToolCallsTotal      *prometheus.CounterVec
	ToolErrorsTotal     *prometheus.CounterVec
	SessionStartsTotal  *prometheus.CounterVec
	SessionEndsTotal    *prometheus.CounterVec
	ParseErrorsTotal    prometheus.Counter
	WebhookDropTotal    *prometheus.CounterVec
	ActiveSessions      prometheus.Gauge
	ToolDurationSeconds *prometheus.HistogramVec

	mu   sync.Mutex
	rate rateTracker
}

// New creates a Collector backed by a fresh, private registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total number of message events processed, by role.",
		}, []string{"role"}),
		ToolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_calls_total",
			Help: "Total number of tool_use events processed, by tool and category.",
		}, []string{"tool", "category"}),
		ToolErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_errors_total",
			Help: "Total number of tool calls that completed with is_error=true, by tool.",
		}, []string{"tool"}),
		SessionStartsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "session_starts_total",
			Help: "Total number of session_start events emitted, by project.",
		}, []string{"project"}),
		SessionEndsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "session_ends_total",
			Help: "Total number of session_end events emitted, by project and reason.",
		}, []string{"project", "reason"}),
		ParseErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "parse_errors_total",
			Help: "Total number of entries that failed to parse.",
		}),
		WebhookDropTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_drop_total",
			Help: "Total number of webhook batches dropped, by kind (4xx, retry_exhausted).",
		}, []string{"kind"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of sessions in the active or idle state.",
		}),
		ToolDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tool_duration_seconds",
			Help:    "Duration between a tool_use and its paired tool_result.",
			Buckets: toolDurationBuckets,
		}, []string{"tool"}),
	}
	c.rate = newRateTracker(time.Now())
	return c
}

// Handler returns the HTTP handler serving this collector's registry in
// Prometheus text exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Observe updates counters/gauges/histograms from one emitted event. Call
// it from an OnAny handler registered on the pipeline's Emitter.
func (c *Collector) Observe(ev event.Event) {
	now := time.Now()
	switch ev.EventType {
	case event.TypeMessage:
		c.MessagesTotal.WithLabelValues(ev.Message.Role).Inc()
		c.mu.Lock()
		c.rate.recordMessage(now)
		c.mu.Unlock()

	case event.TypeToolUse:
		c.ToolCallsTotal.WithLabelValues(ev.ToolUse.ToolName, string(ev.ToolUse.ToolCategory)).Inc()
		c.mu.Lock()
		c.rate.recordTool(now)
		c.mu.Unlock()

	case event.TypeToolCallCompleted:
		c.ToolDurationSeconds.WithLabelValues(ev.ToolCallCompleted.ToolName).Observe(ev.ToolCallCompleted.Duration.Seconds())
		if ev.ToolCallCompleted.IsError {
			c.ToolErrorsTotal.WithLabelValues(ev.ToolCallCompleted.ToolName).Inc()
			c.mu.Lock()
			c.rate.recordToolError()
			c.mu.Unlock()
		}

	case event.TypeError:
		c.ParseErrorsTotal.Inc()

	case event.TypeSessionStart:
		c.SessionStartsTotal.WithLabelValues(ev.SessionStart.ProjectSlug).Inc()

	case event.TypeSessionEnd:
		c.SessionEndsTotal.WithLabelValues(ev.SessionEnd.ProjectSlug, string(ev.SessionEnd.Reason)).Inc()
	}
}

// SetActiveSessions sets the active_sessions gauge.
func (c *Collector) SetActiveSessions(n int) {
	c.ActiveSessions.Set(float64(n))
}

// RecordWebhookDrop increments webhook_drop_total for the given kind
// ("4xx" or "retry_exhausted").
func (c *Collector) RecordWebhookDrop(kind string) {
	c.WebhookDropTotal.WithLabelValues(kind).Inc()
}

// Rates returns the derived read-time properties: messages_per_minute,
// tools_per_minute, and error_rate.
func (c *Collector) Rates() (messagesPerMinute, toolsPerMinute, errorRate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rate.decay(time.Now())
	return c.rate.messagesPerMinute(), c.rate.toolsPerMinute(), c.rate.errorRate()
}
