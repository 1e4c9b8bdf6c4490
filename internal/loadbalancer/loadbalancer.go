package loadbalancer

import (
	"net/http"
	"net/netip"

	"github.com/manifold-proxy/manifold/internal/clientip"
	"github.com/manifold-proxy/manifold/internal/strategy"
	"github.com/manifold-proxy/manifold/internal/target"
)

// LoadBalancer pairs a routing strategy with a client IP extractor. It is a
// value type: copies share the strategy (and its internal counters) while
// each carries its own extractor.
type LoadBalancer struct {
	strategy  strategy.Strategy
	extractor clientip.Extractor
}

// New builds a LoadBalancer routing over targets with the named strategy.
func New(token string, extractor clientip.Extractor, targets []*target.Target) (LoadBalancer, error) {
	strat, err := strategy.New(token, targets)
	if err != nil {
		return LoadBalancer{}, err
	}

	return LoadBalancer{strategy: strat, extractor: extractor}, nil
}

// GetTarget returns the target that should serve a request from ip.
func (lb LoadBalancer) GetTarget(ip netip.Addr) *target.Target {
	return lb.strategy.SelectTarget(ip)
}

// ExtractIP resolves the client IP for a request arriving from peer.
func (lb LoadBalancer) ExtractIP(r *http.Request, peer netip.AddrPort) netip.Addr {
	return lb.extractor.Extract(r, peer)
}

// Strategy exposes the underlying strategy, for introspection endpoints.
func (lb LoadBalancer) Strategy() strategy.Strategy {
	return lb.strategy
}
