package client

import (
	"context"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"ujs-rpc/loadbalance"
	"ujs-rpc/middleware"
	"ujs-rpc/registry"
	"ujs-rpc/transport"
)

// DefaultAsyncJobCheckTime is the job polling interval used when none is
// configured.
const DefaultAsyncJobCheckTime = 5 * time.Second

// Credential is a static token and the user it belongs to.
type Credential struct {
	Token  string
	UserID string
}

// AuthCallback produces a token when a call is made. An empty token sends the
// call without an Authorization header.
type AuthCallback func(ctx context.Context) (string, error)

type Option func(*Client)

// WithURL sets the service endpoint. An empty URL keeps the default.
func WithURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

func WithCredential(token, userID string) Option {
	return func(c *Client) {
		c.credential = Credential{Token: token, UserID: userID}
	}
}

// WithAuthCallback sets a token source consulted on every call. It takes
// precedence over a static credential.
func WithAuthCallback(cb AuthCallback) Option {
	return func(c *Client) {
		c.authCallback = cb
	}
}

// WithTimeout bounds every call. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithAsyncJobCheckTime sets the interval WaitForJob polls at.
func WithAsyncJobCheckTime(d time.Duration) Option {
	return func(c *Client) {
		c.asyncJobCheckTime = d
	}
}

// WithAsyncVersion records the async service version tag. The client stores
// it for callers; it does not change what is sent.
func WithAsyncVersion(v string) Option {
	return func(c *Client) {
		c.asyncVersion = v
	}
}

func WithTransport(t transport.Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMiddleware appends interceptors around the call path. The first one
// given is the outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// WithDiscovery resolves the endpoint of every call through reg and bal
// instead of the static URL.
func WithDiscovery(reg registry.Registry, bal loadbalance.Balancer) Option {
	return func(c *Client) {
		c.registry = reg
		c.balancer = bal
	}
}

// WithClock replaces the wall clock used when polling jobs.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}
