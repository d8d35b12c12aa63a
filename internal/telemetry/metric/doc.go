// Package metric provides Prometheus metrics for chaingate.
//
// A Registry owns a private prometheus.Registry so tests and embedded
// servers never collide on the global default registerer. Every method on
// *Registry is safe to call on a nil receiver, which lets components run
// without metrics wired.
//
// Metrics are exposed at /metrics in Prometheus text format.
package metric
