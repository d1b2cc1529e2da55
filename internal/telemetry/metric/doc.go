// Package metric provides Prometheus metrics for walrus.
//
// Collectors are registered on a private registry so test processes can
// build as many metric sets as they need without name collisions. The
// server exposes the registry at /metrics when the metrics endpoint is
// enabled.
package metric
