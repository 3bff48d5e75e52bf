// Package metrics holds the Prometheus collectors for the HTTP surface, the
// nearby query path, accounts and invitations. Collectors register on the default
// registry; /metrics serves them through promhttp.
package metrics
