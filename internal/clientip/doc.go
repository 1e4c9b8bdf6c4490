// Package clientip resolves the canonical client address of a request.
//
// The extractor is configured with one of three sources:
//   - peer: the remote address of the TCP connection
//   - x-forwarded-for: the leftmost X-Forwarded-For entry
//   - x-real-ip: the X-Real-IP header
//
// Header sources fall back to the peer address when the header is absent
// or unparseable, so extraction always yields an address.
package clientip
