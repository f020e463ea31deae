package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/juju/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// KeyPrefix is the root of every key the registry writes:
//
//	Key:   /ujs/{ServiceName}/{Addr}
//	Value: JSON-encoded ServiceInstance
//
// Registration uses TTL-based leases, so an endpoint whose announcer goes away
// drops out of Discover once the lease expires.
const KeyPrefix = "/ujs/"

// EtcdConfig selects the etcd cluster to use.
type EtcdConfig struct {
	Endpoints   []string
	DialTimeout time.Duration
	Logger      *zap.Logger
}

// EtcdRegistry implements Registry using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
	logger *zap.Logger
}

// NewEtcdRegistry connects to the given etcd cluster.
func NewEtcdRegistry(cfg EtcdConfig) (*EtcdRegistry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to etcd %v", cfg.Endpoints)
	}
	return &EtcdRegistry{client: c, logger: logger}, nil
}

func servicePrefix(serviceName string) string {
	return KeyPrefix + serviceName + "/"
}

// Register announces an instance with a TTL lease and keeps the lease alive
// until ctx is done.
//
// leaseID is a local variable, not stored on the struct, so one EtcdRegistry
// can announce several instances concurrently.
func (r *EtcdRegistry) Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return errors.Annotate(err, "granting lease")
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return errors.Trace(err)
	}

	key := servicePrefix(serviceName) + instance.Addr
	if _, err = r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return errors.Annotatef(err, "putting %s", key)
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return errors.Annotate(err, "keeping lease alive")
	}

	// Drain keepalive responses so the channel never fills up.
	go func() {
		for range ch {
		}
		r.logger.Debug("lease keepalive stopped", zap.String("key", key))
	}()
	return nil
}

// Deregister removes an instance straight away instead of waiting for its
// lease to expire.
func (r *EtcdRegistry) Deregister(ctx context.Context, serviceName string, addr string) error {
	_, err := r.client.Delete(ctx, servicePrefix(serviceName)+addr)
	return errors.Trace(err)
}

// Discover returns all currently registered instances for a service.
func (r *EtcdRegistry) Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Annotatef(err, "discovering %s", serviceName)
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.logger.Warn("skipping malformed registry entry", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Watch emits the full instance list every time something under the service
// prefix changes. The channel is closed when ctx is done.
func (r *EtcdRegistry) Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
		for range watchChan {
			// re-fetch rather than apply individual events
			instances, err := r.Discover(ctx, serviceName)
			if err != nil {
				r.logger.Warn("rediscovery failed", zap.String("service", serviceName), zap.Error(err))
				continue
			}
			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Close releases the etcd connection.
func (r *EtcdRegistry) Close() error {
	return errors.Trace(r.client.Close())
}
