package clientip

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
)

// Source names where the client IP is read from.
type Source int

const (
	// SourcePeer trusts the raw peer address of the connection.
	SourcePeer Source = iota
	// SourceXForwardedFor trusts the leftmost entry of X-Forwarded-For.
	SourceXForwardedFor
	// SourceXRealIP trusts the X-Real-IP header.
	SourceXRealIP
)

// ErrUnknownSource is returned by ParseSource for a token outside the fixed set.
var ErrUnknownSource = errors.New("unknown client IP source")

// ParseSource maps a configuration token to a Source.
func ParseSource(token string) (Source, error) {
	switch token {
	case "peer":
		return SourcePeer, nil
	case "x-forwarded-for":
		return SourceXForwardedFor, nil
	case "x-real-ip":
		return SourceXRealIP, nil
	default:
		return SourcePeer, fmt.Errorf("%w: %q", ErrUnknownSource, token)
	}
}

func (s Source) String() string {
	switch s {
	case SourceXForwardedFor:
		return "x-forwarded-for"
	case SourceXRealIP:
		return "x-real-ip"
	default:
		return "peer"
	}
}

// Extractor derives the canonical client IP for a request. It is a small
// value type, copied freely into every connection handler.
type Extractor struct {
	source Source
}

// New returns an Extractor reading from the given source.
func New(source Source) Extractor {
	return Extractor{source: source}
}

// Source returns the source the extractor reads from.
func (e Extractor) Source() Source {
	return e.source
}

// Extract returns the client IP for a request arriving from peer. A missing
// or malformed header falls back to the peer address; Extract never fails.
func (e Extractor) Extract(r *http.Request, peer netip.AddrPort) netip.Addr {
	switch e.source {
	case SourceXForwardedFor:
		// Leftmost entry: the client as reported by the proxy closest to it.
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if ip, err := netip.ParseAddr(first); err == nil {
				return ip.Unmap()
			}
		}
	case SourceXRealIP:
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			if ip, err := netip.ParseAddr(xri); err == nil {
				return ip.Unmap()
			}
		}
	}

	return peer.Addr().Unmap()
}
