package strategy

import (
	"hash/crc32"
	"net/netip"

	"github.com/manifold-proxy/manifold/internal/target"
)

type ipHash struct {
	targets []*target.Target
}

func newIPHash(targets []*target.Target) (*ipHash, error) {
	snap, err := snapshot(targets)
	if err != nil {
		return nil, err
	}

	return &ipHash{targets: snap}, nil
}

// SelectTarget hashes the client IP onto the snapshot. A given IP lands on
// the same target for the lifetime of this instance, independent of call
// order; distinct IPs may share a target. Hashing the 16-byte form keeps an
// IPv4 address and its IPv4-mapped IPv6 form on the same target.
func (ih *ipHash) SelectTarget(ip netip.Addr) *target.Target {
	addr := ip.As16()
	sum := crc32.ChecksumIEEE(addr[:])

	return ih.targets[sum%uint32(len(ih.targets))]
}
