// Package loadbalance chooses which UserAndJobState endpoint serves a call.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity endpoints
//   - WeightedRandom:  endpoints of different capacity
//   - ConsistentHash:  calls about the same job land on the same endpoint
package loadbalance

import (
	"github.com/juju/errors"

	"ujs-rpc/registry"
)

// ErrNoInstances is returned by every strategy when the list is empty.
const ErrNoInstances = errors.ConstError("no instances available")

// Balancer is the interface for load balancing strategies.
// The client calls Pick() before each call to select a target endpoint.
type Balancer interface {
	// Pick selects one instance from the available list. key identifies the
	// call; strategies without affinity ignore it.
	// Called on every call, must be goroutine-safe.
	Pick(key string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New returns the balancer with the given name. An empty name selects
// round robin.
func New(name string) (Balancer, error) {
	switch name {
	case "", "RoundRobin", "round_robin":
		return &RoundRobinBalancer{}, nil
	case "WeightedRandom", "weighted_random":
		return &WeightedRandomBalancer{}, nil
	case "ConsistentHash", "consistent_hash":
		return NewConsistentHashBalancer(), nil
	}
	return nil, errors.NotValidf("balancer %q", name)
}
