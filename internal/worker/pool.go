package worker

import (
	"fmt"
	"log/slog"
	"net/netip"
)

// Pool owns a set of same-type workers. It grows through Spawn and is torn
// down as a unit through Stop; membership never shrinks while running.
type Pool struct {
	workers  []*Worker
	launcher Launcher
	workdir  string
	log      *slog.Logger
}

// NewPool returns an empty pool spawning workers of the launcher's kind
// inside workdir.
func NewPool(launcher Launcher, workdir string, log *slog.Logger) *Pool {
	return &Pool{
		launcher: launcher,
		workdir:  workdir,
		log:      log,
	}
}

// Spawn appends n workers to the pool. The first failure aborts the call;
// workers spawned before the failure keep running.
func (p *Pool) Spawn(n int) error {
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("worker-%d", len(p.workers)+1)
		w, err := newWorker(name, p.launcher, p.workdir, p.log)
		if err != nil {
			return fmt.Errorf("spawning %s: %w", name, err)
		}
		p.workers = append(p.workers, w)
	}
	return nil
}

// SocketAddrs returns the workers' addresses in spawn order. The slice is
// the snapshot routing strategies are built from.
func (p *Pool) SocketAddrs() []netip.AddrPort {
	addrs := make([]netip.AddrPort, 0, len(p.workers))
	for _, w := range p.workers {
		addrs = append(addrs, w.Addr())
	}
	return addrs
}

// Workers returns the pool's workers in spawn order.
func (p *Pool) Workers() []*Worker {
	return p.workers
}

// Stop stops every worker in the pool.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
}
