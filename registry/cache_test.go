package registry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"
)

// countingRegistry counts Discover calls that reach the wrapped registry.
type countingRegistry struct {
	*MemoryRegistry
	discovers atomic.Int32
	fail      error
}

func (r *countingRegistry) Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error) {
	r.discovers.Add(1)
	if r.fail != nil {
		return nil, r.fail
	}
	return r.MemoryRegistry.Discover(ctx, serviceName)
}

func waitForInstances(c *qt.C, cache *Cache, n int) {
	deadline := time.Now().Add(time.Second)
	for {
		instances, err := cache.Discover(context.Background(), "UserAndJobState")
		c.Assert(err, qt.IsNil)
		if len(instances) == n {
			return
		}
		if time.Now().After(deadline) {
			c.Fatalf("expect %d instances, got %v", n, instances)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCacheServesFromWatch(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	backend := &countingRegistry{MemoryRegistry: NewStaticRegistry("UserAndJobState", ServiceInstance{Addr: "http://a/"})}
	cache := NewCache(backend, nil)

	for i := 0; i < 5; i++ {
		instances, err := cache.Discover(ctx, "UserAndJobState")
		c.Assert(err, qt.IsNil)
		c.Assert(instances, qt.DeepEquals, []ServiceInstance{{Addr: "http://a/"}})
	}
	c.Assert(backend.discovers.Load(), qt.Equals, int32(1))

	c.Assert(cache.Register(ctx, "UserAndJobState", ServiceInstance{Addr: "http://b/"}, 0), qt.IsNil)
	waitForInstances(c, cache, 2)

	c.Assert(cache.Deregister(ctx, "UserAndJobState", "http://a/"), qt.IsNil)
	waitForInstances(c, cache, 1)
	c.Assert(backend.discovers.Load(), qt.Equals, int32(1))

	cache.Close()
	instances, err := cache.Discover(ctx, "UserAndJobState")
	c.Assert(err, qt.IsNil)
	c.Assert(instances, qt.DeepEquals, []ServiceInstance{{Addr: "http://b/"}})
	c.Assert(backend.discovers.Load(), qt.Equals, int32(2))
}

func TestCacheEmptyService(t *testing.T) {
	c := qt.New(t)
	backend := &countingRegistry{MemoryRegistry: NewMemoryRegistry()}
	cache := NewCache(backend, nil)
	defer cache.Close()

	instances, err := cache.Discover(context.Background(), "UserAndJobState")
	c.Assert(err, qt.IsNil)
	c.Assert(instances, qt.HasLen, 0)
	instances, err = cache.Discover(context.Background(), "UserAndJobState")
	c.Assert(err, qt.IsNil)
	c.Assert(instances, qt.HasLen, 0)
	c.Assert(backend.discovers.Load(), qt.Equals, int32(1))
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	c := qt.New(t)
	backend := &countingRegistry{MemoryRegistry: NewMemoryRegistry(), fail: errors.New("etcd unavailable")}
	cache := NewCache(backend, nil)
	defer cache.Close()

	for i := 0; i < 2; i++ {
		_, err := cache.Discover(context.Background(), "UserAndJobState")
		c.Assert(err, qt.ErrorMatches, "etcd unavailable")
	}
	c.Assert(backend.discovers.Load(), qt.Equals, int32(2))
}
