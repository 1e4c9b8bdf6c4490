package strategy

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/manifold-proxy/manifold/internal/target"
)

// Configuration tokens naming the fixed strategy set.
const (
	TokenRoundRobin = "round_robin"
	TokenIPHash     = "ip_hash"
)

var (
	// ErrUnknownStrategy is returned by New for a token outside the fixed set.
	ErrUnknownStrategy = errors.New("unknown load balancing strategy")

	// ErrNoTargets is returned when a strategy is built over an empty snapshot.
	ErrNoTargets = errors.New("strategy requires at least one target")
)

// Strategy selects the target serving a client IP. Implementations are safe
// for concurrent use and hold a fixed snapshot of targets taken at
// construction; pool changes after that are never observed.
type Strategy interface {
	SelectTarget(ip netip.Addr) *target.Target
}

// New builds the strategy named by token over a snapshot of targets. The
// snapshot must be non-empty.
func New(token string, targets []*target.Target) (Strategy, error) {
	switch token {
	case TokenRoundRobin:
		return newRoundRobin(targets)
	case TokenIPHash:
		return newIPHash(targets)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, token)
	}
}

// snapshot copies the target list so a strategy owns its view of the pool.
func snapshot(targets []*target.Target) ([]*target.Target, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	cp := make([]*target.Target, len(targets))
	copy(cp, targets)

	return cp, nil
}
