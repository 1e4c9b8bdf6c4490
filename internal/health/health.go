package health

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/manifold-proxy/manifold/internal/metrics"
)

const dialTimeout = 2 * time.Second

// Monitor periodically probes a worker address with a TCP dial, reporting
// the first probe's result and every change after it. Routing is built from
// a fixed address snapshot, so the monitor observes and reports; it never
// removes a target.
func Monitor(
	ctx context.Context,
	addr netip.AddrPort,
	interval time.Duration,
	logger *slog.Logger,
	collector *metrics.Collector,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var healthy, known bool

	for {
		select {
		case <-ctx.Done():
			logger.Info("Health monitor stopped",
				slog.String("worker", addr.String()))
			return

		case <-ticker.C:
			up := probe(addr)
			if known && up == healthy {
				continue
			}

			switch {
			case !up:
				logger.Warn("Worker is down",
					slog.String("worker", addr.String()))
			case known:
				logger.Info("Worker is back up",
					slog.String("worker", addr.String()))
			default:
				logger.Info("Worker is up",
					slog.String("worker", addr.String()))
			}

			healthy = up
			known = true

			collector.Emit(metrics.Event{
				Type:    metrics.EventHealthChanged,
				Target:  addr.String(),
				Healthy: up,
			})
		}
	}
}

func probe(addr netip.AddrPort) bool {
	conn, err := net.DialTimeout("tcp", addr.String(), dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
