// Package metric provides the Prometheus registry for the container.
//
// NewMetricsRegistry registers the container-wide instruments (Metrics):
// invocation counts and latency by component, singleton lock waits and
// timeouts, active and removed sessions, pool instance counts and sweep runs.
// Packages that own extra instruments register them through MetricsRegistrar,
// keyed "<owner>.<metric>" so duplicates are rejected before they reach
// Prometheus.
//
// Handler exposes everything, including Go runtime and process collectors, in
// the Prometheus exposition format; the HTTP gateway mounts it at /metrics.
package metric
