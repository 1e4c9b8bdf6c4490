package strategy

import (
	"net/netip"
	"sync/atomic"

	"github.com/manifold-proxy/manifold/internal/target"
)

type roundRobin struct {
	targets []*target.Target
	current atomic.Uint64
}

func newRoundRobin(targets []*target.Target) (*roundRobin, error) {
	snap, err := snapshot(targets)
	if err != nil {
		return nil, err
	}

	return &roundRobin{targets: snap}, nil
}

// SelectTarget ignores the client IP and cycles through the snapshot in
// construction order. The shared counter is atomic, so concurrent callers
// observe one globally consistent sequence.
func (rr *roundRobin) SelectTarget(_ netip.Addr) *target.Target {
	n := rr.current.Add(1)

	return rr.targets[(n-1)%uint64(len(rr.targets))]
}
