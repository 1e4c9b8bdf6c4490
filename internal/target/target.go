package target

import (
	"net/http/httputil"
	"net/netip"
	"net/url"
)

// Target is an opaque handle to one worker's network address. Strategies hand
// out Targets; the request handler forwards through them.
type Target struct {
	addr  netip.AddrPort
	url   *url.URL
	proxy *httputil.ReverseProxy
}

// New creates a Target for a worker listening at addr.
func New(addr netip.AddrPort) *Target {
	u := &url.URL{Scheme: "http", Host: addr.String()}

	return &Target{
		addr:  addr,
		url:   u,
		proxy: httputil.NewSingleHostReverseProxy(u),
	}
}

// FromAddrs builds one Target per address, preserving order. The input is a
// pool snapshot, so the result keeps the pool's spawn order.
func FromAddrs(addrs []netip.AddrPort) []*Target {
	targets := make([]*Target, len(addrs))
	for i, addr := range addrs {
		targets[i] = New(addr)
	}

	return targets
}

// Addr returns the worker's socket address.
func (t *Target) Addr() netip.AddrPort {
	return t.addr
}

// URL returns the target's base URL.
func (t *Target) URL() *url.URL {
	return t.url
}

// ReverseProxy returns the HTTP reverse proxy forwarding to this target.
func (t *Target) ReverseProxy() *httputil.ReverseProxy {
	return t.proxy
}
