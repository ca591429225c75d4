// Package metrics provides interfaces and implementations for
// collecting exmdbsrv metrics: per-verb call counts, handle-table
// occupancy, and store-driver latency.
//
// Grounded on infodancer-pop3d's internal/metrics package (Collector +
// Server split, Noop/Prometheus implementations).
package metrics

import "context"

// Collector defines the interface for recording server metrics.
type Collector interface {
	// Session metrics
	SessionOpened()
	SessionClosed()

	// Verb metrics: one call per rop.Session method invocation.
	VerbCalled(verb string, code string)

	// HandleCount reports the live handle count for a session
	// immediately after a handle-map mutation.
	HandleCount(n int)

	// StoreLatency observes how long a single exmdb.Store call took.
	StoreLatency(method string, seconds float64)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is
	// canceled or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
