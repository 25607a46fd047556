// Package metrics holds the Prometheus collectors for webpilot.
//
// All recording methods are safe to call on a nil *Collector, which records
// nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups the collectors on a private registry.
type Collector struct {
	registry *prometheus.Registry

	actionsTotal        *prometheus.CounterVec
	actionDuration      *prometheus.HistogramVec
	strategyHits        *prometheus.CounterVec
	captchaDetections   *prometheus.CounterVec
	captchaOutcomes     *prometheus.CounterVec
	sessionInits        *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a collector whose metrics carry namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		actionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Executed actions by outcome",
		}, []string{"action", "outcome"}),
		actionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Action execution time in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"action"}),
		strategyHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_strategy_hits_total",
			Help:      "Element resolutions by the strategy that matched",
		}, []string{"strategy"}),
		captchaDetections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captcha_detections_total",
			Help:      "CAPTCHA detections by kind",
		}, []string{"kind"}),
		captchaOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captcha_outcomes_total",
			Help:      "CAPTCHA handling outcomes",
		}, []string{"state"}),
		sessionInits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_initializations_total",
			Help:      "Browser session initializations by result",
		}, []string{"result"}),
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveAction records one action execution.
func (c *Collector) ObserveAction(action, outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.actionsTotal.WithLabelValues(action, outcome).Inc()
	c.actionDuration.WithLabelValues(action).Observe(took.Seconds())
}

// StrategyHit records which resolution strategy matched, or "none".
func (c *Collector) StrategyHit(strategy string) {
	if c == nil {
		return
	}
	c.strategyHits.WithLabelValues(strategy).Inc()
}

// CaptchaDetected records a detection of kind.
func (c *Collector) CaptchaDetected(kind string) {
	if c == nil {
		return
	}
	c.captchaDetections.WithLabelValues(kind).Inc()
}

// CaptchaOutcome records the final state of a CAPTCHA check.
func (c *Collector) CaptchaOutcome(state string) {
	if c == nil {
		return
	}
	c.captchaOutcomes.WithLabelValues(state).Inc()
}

// SessionInit records a session initialization attempt.
func (c *Collector) SessionInit(err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.sessionInits.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, path string, status int, took time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(took.Seconds())
}
