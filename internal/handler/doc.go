// Package handler implements the HTTP entry point of the proxy: it resolves
// the client IP, asks the balancer for a target, forwards the request through
// the target's reverse proxy, and emits metrics events along the way.
package handler
