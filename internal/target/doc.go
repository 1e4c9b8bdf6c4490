// Package target wraps one worker's socket address together with the HTTP
// reverse proxy that forwards requests to it. Targets are built once from a
// pool's address snapshot and are immutable afterwards.
package target
