package metric

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "chaingate"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsExpired prometheus.Counter
	SessionsRevoked prometheus.Counter

	// Connection metrics
	ConnectionsAccepted prometheus.Counter
	HandoffRejected     prometheus.Counter
	ShardConnections    *prometheus.GaugeVec
	ShardQueueDepth     *prometheus.GaugeVec
	AdoptFailures       *prometheus.CounterVec
	EventsProcessed     *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with all collectors registered, plus the
// Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions_active",
			Help:      "Number of live sessions in the registry.",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created by successful logins.",
		}),
		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_expired_total",
			Help:      "Sessions removed by the idle sweep.",
		}),
		SessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_revoked_total",
			Help:      "Sessions removed by logout.",
		}),
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted by the listener.",
		}),
		HandoffRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "handoff_rejected_total",
			Help:      "Connections closed because a shard queue was full.",
		}),
		ShardConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "shard",
			Name:      "connections",
			Help:      "Connections owned by each shard.",
		}, []string{"shard"}),
		ShardQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "shard",
			Name:      "queue_depth",
			Help:      "Connections waiting in each shard's hand-off queue.",
		}, []string{"shard"}),
		AdoptFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "shard",
			Name:      "adopt_failures_total",
			Help:      "Handed-off connections a shard could not adopt.",
		}, []string{"shard"}),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "shard",
			Name:      "events_total",
			Help:      "Connection events processed, by kind.",
		}, []string{"kind"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Requests handled, by surface and outcome.",
		}, []string{"surface", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_duration_seconds",
			Help:      "Request handling latency, by surface.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"surface"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SessionsActive,
		r.SessionsCreated,
		r.SessionsExpired,
		r.SessionsRevoked,
		r.ConnectionsAccepted,
		r.HandoffRejected,
		r.ShardConnections,
		r.ShardQueueDepth,
		r.AdoptFailures,
		r.EventsProcessed,
		r.RequestsTotal,
		r.RequestDuration,
	)
	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns an HTTP handler serving the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registerer exposes the underlying registry for components that own
// their collectors (the state store size gauges, for one).
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return nil
	}
	return r.registry
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return nil
	}
	return r.registry
}

// SetSessionsActive sets the live session gauge.
func (r *Registry) SetSessionsActive(n int) {
	if r == nil {
		return
	}
	r.SessionsActive.Set(float64(n))
}

// IncSessionCreated counts one login.
func (r *Registry) IncSessionCreated() {
	if r == nil {
		return
	}
	r.SessionsCreated.Inc()
}

// AddSessionsExpired counts sessions removed by a sweep.
func (r *Registry) AddSessionsExpired(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.SessionsExpired.Add(float64(n))
}

// AddSessionsRevoked counts sessions removed by logout.
func (r *Registry) AddSessionsRevoked(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.SessionsRevoked.Add(float64(n))
}

// IncConnectionsAccepted counts one accepted connection.
func (r *Registry) IncConnectionsAccepted() {
	if r == nil {
		return
	}
	r.ConnectionsAccepted.Inc()
}

// IncHandoffRejected counts one connection dropped at hand-off.
func (r *Registry) IncHandoffRejected() {
	if r == nil {
		return
	}
	r.HandoffRejected.Inc()
}

// SetShardConnections sets the owned connection gauge for a shard.
func (r *Registry) SetShardConnections(shard, n int) {
	if r == nil {
		return
	}
	r.ShardConnections.WithLabelValues(strconv.Itoa(shard)).Set(float64(n))
}

// SetShardQueueDepth sets the hand-off queue gauge for a shard.
func (r *Registry) SetShardQueueDepth(shard, n int) {
	if r == nil {
		return
	}
	r.ShardQueueDepth.WithLabelValues(strconv.Itoa(shard)).Set(float64(n))
}

// IncAdoptFailure counts one failed adoption on a shard.
func (r *Registry) IncAdoptFailure(shard int) {
	if r == nil {
		return
	}
	r.AdoptFailures.WithLabelValues(strconv.Itoa(shard)).Inc()
}

// IncEvent counts one processed connection event.
func (r *Registry) IncEvent(kind string) {
	if r == nil {
		return
	}
	r.EventsProcessed.WithLabelValues(kind).Inc()
}

// RecordRequest counts one handled request.
func (r *Registry) RecordRequest(surface, outcome string) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(surface, outcome).Inc()
}

// ObserveRequestDuration records request latency in seconds.
func (r *Registry) ObserveRequestDuration(surface string, seconds float64) {
	if r == nil {
		return
	}
	r.RequestDuration.WithLabelValues(surface).Observe(seconds)
}
