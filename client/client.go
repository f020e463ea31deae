// Package client is the UserAndJobState RPC client.
//
// Every remote method goes through one call path driven by the method catalog
// in package protocol:
//
//	Call(method, params...)
//	  → contract checks (known method, no function values, exact arity)
//	  → middleware chain (logging, user middlewares, timeout)
//	    → roundTrip: token → endpoint → encode → POST → classify reply
//	  → unwrap result by return arity (0: nothing, 1: result[0], N: result)
//
// Failures come back as one of three kinds: a NotValid contract violation
// raised before any I/O, a *MalformedResponseError, or a
// *RequestFailedError. Nothing is retried.
//
// The typed methods (Ver, GetState, CreateJob2, ...) are thin wrappers that
// convert arguments and decode results.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"ujs-rpc/codec"
	"ujs-rpc/loadbalance"
	"ujs-rpc/message"
	"ujs-rpc/middleware"
	"ujs-rpc/protocol"
	"ujs-rpc/registry"
	"ujs-rpc/transport"
)

// Client is safe for concurrent use. Its configuration is fixed by New.
type Client struct {
	url               string
	credential        Credential
	authCallback      AuthCallback
	timeout           time.Duration
	asyncJobCheckTime time.Duration
	asyncVersion      string

	transport   transport.Transport
	codec       codec.Codec
	logger      *zap.Logger
	middlewares []middleware.Middleware
	registry    registry.Registry
	balancer    loadbalance.Balancer
	clock       clock.Clock

	handler middleware.HandlerFunc
}

// New creates a client. Without options it talks to protocol.DefaultURL over
// a fresh HTTPTransport, anonymously and without a timeout.
func New(opts ...Option) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}

	if c.url == "" {
		c.url = protocol.DefaultURL
	}
	if c.asyncJobCheckTime <= 0 {
		c.asyncJobCheckTime = DefaultAsyncJobCheckTime
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.transport == nil {
		c.transport = transport.NewHTTPTransport(transport.WithLogger(c.logger))
	}
	if c.registry != nil && c.balancer == nil {
		c.balancer = &loadbalance.RoundRobinBalancer{}
	}
	if c.clock == nil {
		c.clock = clock.WallClock
	}
	c.codec = codec.GetCodec(codec.CodecTypeJSON)

	// Logging sees the final outcome, Timeout sits right above the wire.
	chain := []middleware.Middleware{middleware.Logging(c.logger)}
	chain = append(chain, c.middlewares...)
	if c.timeout > 0 {
		chain = append(chain, middleware.Timeout(c.timeout))
	}
	c.handler = middleware.Chain(chain...)(c.roundTrip)
	return c
}

func (c *Client) URL() string                      { return c.url }
func (c *Client) Credential() Credential           { return c.credential }
func (c *Client) Timeout() time.Duration           { return c.timeout }
func (c *Client) AsyncJobCheckTime() time.Duration { return c.asyncJobCheckTime }
func (c *Client) AsyncVersion() string             { return c.asyncVersion }

// Close releases idle connections held by the transport.
func (c *Client) Close() {
	if t, ok := c.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
}

// Call invokes method with positional params and returns its result:
// nothing for methods without a return value, the single value for methods
// returning one, and the whole result list otherwise.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	result, _, err := c.call(ctx, method, params)
	return result, err
}

// call is Call that also hands back the reply the result was taken from, so
// callers decoding the result can report where it came from.
func (c *Client) call(ctx context.Context, method string, params []any) (json.RawMessage, *message.Response, error) {
	m, err := checkCall(method, params)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.handler(ctx, message.NewRequest(m.QualifiedName(), params))
	if err != nil {
		return nil, nil, normalize(err)
	}

	switch m.Returns {
	case 0:
		return nil, resp, nil
	case 1:
		values, err := resp.Results()
		if err != nil {
			return nil, resp, malformed(resp, err)
		}
		if len(values) == 0 {
			return nil, resp, malformed(resp, errors.New("empty result"))
		}
		return values[0], resp, nil
	default:
		return resp.Result, resp, nil
	}
}

// checkCall applies the contract checks that run before any I/O.
func checkCall(method string, params []any) (protocol.Method, error) {
	m, ok := protocol.Lookup(method)
	if !ok {
		return m, errors.NewNotValid(nil, fmt.Sprintf("unknown method %q", method))
	}
	for i, p := range params {
		if p != nil && reflect.TypeOf(p).Kind() == reflect.Func {
			name := fmt.Sprintf("#%d", i+1)
			if i < len(m.Params) {
				name = m.Params[i]
			}
			return m, errors.NewNotValid(nil, fmt.Sprintf("%s: argument %s is a function", m.Name, name))
		}
	}
	switch {
	case len(params) > m.Arity():
		return m, errors.NewNotValid(nil, fmt.Sprintf("%s: too many arguments: expected %d, got %d", m.Name, m.Arity(), len(params)))
	case len(params) < m.Arity():
		return m, errors.NewNotValid(nil, fmt.Sprintf("%s: too few arguments: expected %d, got %d", m.Name, m.Arity(), len(params)))
	}
	return m, nil
}

// normalize makes a deadline or cancellation raised above the transport look
// like the transport failure it stands for.
func normalize(err error) error {
	var failed *RequestFailedError
	var malformed *MalformedResponseError
	if errors.As(err, &failed) || errors.As(err, &malformed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return requestFailed("", 0, nil, err)
	}
	return err
}

// roundTrip is the innermost handler: it sends one envelope and classifies
// the reply.
func (c *Client) roundTrip(ctx context.Context, req *message.Request) (*message.Response, error) {
	token, sendToken, err := c.token(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "obtaining token")
	}

	url, err := c.endpoint(ctx, req)
	if err != nil {
		return nil, errors.Trace(err)
	}

	body, err := codec.EncodeRequest(c.codec, req)
	if err != nil {
		return nil, errors.Trace(err)
	}

	treq := &transport.Request{
		URL:     url,
		Header:  http.Header{},
		Body:    body,
		Timeout: c.timeout,
	}
	treq.Header.Set("Content-Type", protocol.ContentType)
	if sendToken {
		treq.Header.Set(protocol.AuthorizationHeader, token)
	}

	tresp, err := c.transport.RoundTrip(ctx, treq)
	if err != nil || !tresp.OK() {
		var status int
		var raw []byte
		if tresp != nil {
			status, raw = tresp.StatusCode, tresp.Body
		}
		return nil, requestFailed(url, status, raw, err)
	}

	resp, err := codec.DecodeResponse(c.codec, tresp.Body)
	if err != nil {
		return nil, &MalformedResponseError{Err: err, URL: url, Body: tresp.Body}
	}
	resp.URL, resp.Body = url, tresp.Body
	if resp.HasError() {
		return nil, &RequestFailedError{
			Payload:    resp.Error,
			Message:    payloadMessage(resp.Error),
			StatusCode: tresp.StatusCode,
			URL:        url,
		}
	}
	if err := checkResult(req.Method, resp); err != nil {
		return nil, malformed(resp, err)
	}
	return resp, nil
}

// checkResult verifies the reply holds as many values as the method returns.
func checkResult(method string, resp *message.Response) error {
	m, _ := protocol.Lookup(method)
	if m.Returns == 0 {
		return nil
	}
	values, err := resp.Results()
	if err != nil {
		return errors.Trace(err)
	}
	if len(values) < m.Returns {
		return errors.Errorf("expected %d result values, got %d", m.Returns, len(values))
	}
	return nil
}

// token resolves the Authorization value for one call and whether to send
// it. The callback is asked every time so rotated tokens are picked up, and
// whatever it returns is sent, even "". A stored token is sent only when set.
func (c *Client) token(ctx context.Context) (string, bool, error) {
	if c.authCallback != nil {
		token, err := c.authCallback(ctx)
		return token, true, err
	}
	return c.credential.Token, c.credential.Token != "", nil
}

// endpoint picks the URL for one call. Job-scoped calls are keyed by job id so
// an affinity balancer keeps a job on one endpoint.
func (c *Client) endpoint(ctx context.Context, req *message.Request) (string, error) {
	if c.registry == nil {
		return c.url, nil
	}
	instances, err := c.registry.Discover(ctx, protocol.ServiceName)
	if err != nil {
		return "", errors.Annotate(err, "discovering endpoints")
	}

	key := req.Method
	if m, ok := protocol.Lookup(req.Method); ok && m.JobScoped() && len(req.Params) > 0 {
		if job, ok := req.Params[0].(string); ok {
			key = job
		}
	}

	inst, err := c.balancer.Pick(key, instances)
	if err != nil {
		return "", errors.Annotatef(err, "picking endpoint with %s", c.balancer.Name())
	}
	c.logger.Debug("endpoint selected",
		zap.String("method", req.Method),
		zap.String("key", key),
		zap.String("addr", inst.Addr))
	return inst.Addr, nil
}
