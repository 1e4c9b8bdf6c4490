// Package health implements periodic reachability probing for worker
// subprocesses. It reports each worker's first probed state and every
// change after it through the log and the metrics pipeline; routing itself
// always uses the full address snapshot.
package health
