// Package registry keeps track of the UserAndJobState endpoints a client may
// call.
//
// Every endpoint is stored under its service name. A client asks Discover for
// the current list, or Watch for updates, and leaves choosing between them to
// a loadbalance.Balancer.
package registry

import "context"

// ServiceInstance is one reachable endpoint of a service.
type ServiceInstance struct {
	Addr    string `json:"addr" yaml:"addr"`       // Base URL, e.g. "https://ujs-1.example.org/services/userandjobstate/"
	Weight  int    `json:"weight" yaml:"weight"`   // Weight for load balancing
	Version string `json:"version" yaml:"version"` // Service version reported by ver()
}

type Registry interface {
	Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance
}
