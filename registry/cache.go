package registry

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Cache serves Discover from memory and keeps each service's list current
// from the wrapped registry's Watch channel.
//
//	first Discover(svc) ──► Watch(svc) + Discover(svc) on the backend
//	later Discover(svc) ──► cached list
//	watch update        ──► cached list replaced
//
// A service whose watch channel closes is fetched from the backend again on
// the next Discover.
type Cache struct {
	backend Registry
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	services map[string][]ServiceInstance
}

// NewCache wraps backend. Close stops every watch it started.
func NewCache(backend Registry, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		backend:  backend,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		services: make(map[string][]ServiceInstance),
	}
}

func (c *Cache) Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error {
	return c.backend.Register(ctx, serviceName, instance, ttl)
}

func (c *Cache) Deregister(ctx context.Context, serviceName string, addr string) error {
	return c.backend.Deregister(ctx, serviceName, addr)
}

func (c *Cache) Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance {
	return c.backend.Watch(ctx, serviceName)
}

// Discover returns the cached list for serviceName, asking the backend only
// when the service is not being watched yet. After Close every call goes to
// the backend.
func (c *Cache) Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error) {
	c.mu.RLock()
	instances, ok := c.services[serviceName]
	c.mu.RUnlock()
	if ok {
		return instances, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if instances, ok := c.services[serviceName]; ok {
		return instances, nil
	}
	if c.ctx.Err() != nil {
		return c.backend.Discover(ctx, serviceName)
	}

	// The watch starts first so no change after the fetch is missed; updates
	// wait for mu, which is held until the fetched list is stored.
	watchCtx, stop := context.WithCancel(c.ctx)
	updates := c.backend.Watch(watchCtx, serviceName)
	instances, err := c.backend.Discover(ctx, serviceName)
	if err != nil {
		stop()
		return nil, err
	}
	if instances == nil {
		instances = []ServiceInstance{}
	}
	c.services[serviceName] = instances

	c.wg.Add(1)
	go c.follow(serviceName, updates, stop)
	return instances, nil
}

func (c *Cache) follow(serviceName string, updates <-chan []ServiceInstance, stop context.CancelFunc) {
	defer c.wg.Done()
	defer stop()
	for instances := range updates {
		if instances == nil {
			instances = []ServiceInstance{}
		}
		c.mu.Lock()
		c.services[serviceName] = instances
		c.mu.Unlock()
		c.logger.Debug("endpoints updated",
			zap.String("service", serviceName),
			zap.Int("instances", len(instances)))
	}

	c.mu.Lock()
	delete(c.services, serviceName)
	c.mu.Unlock()
}

// Close stops all watches and waits for them to finish. It does not close
// the backend.
func (c *Cache) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}
