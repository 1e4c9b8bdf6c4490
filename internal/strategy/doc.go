// Package strategy implements the load balancing algorithms that pick a
// target for each request:
//
//   - Round Robin: cycles through the targets in order, ignoring the client IP
//   - IP Hash: hashes the client IP so repeated requests stick to one target
//
// A strategy is built once, through New, from a fixed snapshot of worker
// addresses and never tracks pool membership afterwards; changing the pool
// means building a new strategy.
package strategy
