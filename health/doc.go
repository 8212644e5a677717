// Package health describes the health of the container and its parts.
//
// A Status is a small tree: the container aggregates sub-statuses for its
// singletons, sessions, instance pool, scheduler and connections. Aggregate
// reports the worst sub-status, so one unhealthy part makes the whole container
// unhealthy while a degraded part only degrades it.
//
//	status := health.Aggregate("container", []health.Status{
//		health.NewHealthy("singletons", "3 initialized"),
//		health.FromError("nats", natsErr),
//	})
//
// Messages built from errors are sanitized: URLs, paths, addresses and
// credentials are replaced before they reach a health endpoint.
package health
