// Package metrics exports authenticator activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-authflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const routeNone = "none"

// Collector observes snapshots and activity events. It implements
// authflow.ActivitySink and is attached to an authenticator with Attach.
type Collector struct {
	transitions *prometheus.CounterVec
	pending     prometheus.Gauge
	waits       *prometheus.HistogramVec
	activity    *prometheus.CounterVec
	failures    *prometheus.CounterVec

	now func() time.Time

	mu           sync.Mutex
	route        string
	pendingSince time.Time
	pendingFlow  string
}

// Option customizes a Collector.
type Option func(*Collector)

// WithClock overrides the time source used for wait durations.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCollector builds the metric set under namespace.
func NewCollector(namespace string, opts ...Option) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_transitions_total",
			Help:      "Route changes published by the authenticator",
		}, []string{"from", "to"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending",
			Help:      "1 while the active flow waits on a handler call",
		}),
		waits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_wait_seconds",
			Help:      "Time flows spend waiting on handler calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"flow"}),
		activity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Activity events by type",
		}, []string{"event"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Rejected handler calls by operation and error name",
		}, []string{"flow", "operation", "error_name"}),
		now:   time.Now,
		route: routeNone,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.transitions.Describe(ch)
	c.pending.Describe(ch)
	c.waits.Describe(ch)
	c.activity.Describe(ch)
	c.failures.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.transitions.Collect(ch)
	c.pending.Collect(ch)
	c.waits.Collect(ch)
	c.activity.Collect(ch)
	c.failures.Collect(ch)
}

// Attach subscribes the collector to a's snapshots.
func (c *Collector) Attach(a *authflow.Authenticator) (detach func()) {
	c.Observe(a.Snapshot())
	return a.Subscribe(c.Observe)
}

// Observe records one published snapshot.
func (c *Collector) Observe(s authflow.Snapshot) {
	route := string(authflow.RouteOf(s))
	if route == "" {
		route = routeNone
	}
	pending := s.HasTag(authflow.TagPending)

	c.mu.Lock()
	defer c.mu.Unlock()

	if route != c.route {
		c.transitions.WithLabelValues(c.route, route).Inc()
		c.route = route
	}

	switch {
	case pending && c.pendingSince.IsZero():
		c.pendingSince = c.now()
		c.pendingFlow = string(s.Child.Flow)
		c.pending.Set(1)
	case !pending && !c.pendingSince.IsZero():
		c.waits.WithLabelValues(c.pendingFlow).Observe(c.now().Sub(c.pendingSince).Seconds())
		c.pendingSince = time.Time{}
		c.pendingFlow = ""
		c.pending.Set(0)
	}
}

// Record implements authflow.ActivitySink.
func (c *Collector) Record(_ context.Context, event authflow.ActivityEvent) error {
	c.activity.WithLabelValues(string(event.EventType)).Inc()
	if event.EventType == authflow.ActivityEventOperationFailed {
		c.failures.WithLabelValues(string(event.Flow), event.Operation, event.ErrorName).Inc()
	}
	return nil
}

// Handler registers c on a fresh registry and returns its scrape handler.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
