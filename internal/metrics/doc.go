// Package metrics provides real-time metrics collection for the proxy.
//
// It uses a channel-based event pipeline to asynchronously collect metrics about:
//   - Request counts per worker target
//   - Target selection frequencies
//   - Response times with percentile calculations (P50, P95, P99)
//   - HTTP status code distribution
//   - Worker reachability tracking
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path. Emit is non-blocking: events are dropped rather
// than queued when the buffer is full, and a nil collector silently discards
// everything.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	// Emit events during request handling
//	collector.Emit(metrics.Event{
//		Type:       metrics.EventResponseCompleted,
//		Target:     "127.0.0.1:43123",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	// Get metrics snapshot
//	snapshot := collector.Snapshot("round_robin")
//
// The package provides thread-safe metrics storage using sync.RWMutex and
// supports graceful shutdown with event draining to prevent data loss.
package metrics
