package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"ujs-rpc/protocol"
)

// HTTPTransport implements Transport over net/http. One instance may be
// shared by any number of goroutines; connections are pooled by the
// underlying http.Client.
type HTTPTransport struct {
	client *http.Client
	logger *zap.Logger
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithLogger sets the logger used for per-request debug output.
func WithLogger(logger *zap.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// NewHTTPTransport creates a transport with its own connection pool.
func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip POSTs req.Body to req.URL.
//
// The timeout is applied through the request context so it covers the whole
// exchange, including reading the body.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, errors.Trace(err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", protocol.ContentType)
	}

	start := time.Now()
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		t.logger.Debug("request failed",
			zap.String("url", req.URL),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, errors.Trace(err)
	}
	defer httpResp.Body.Close()

	resp := &Response{StatusCode: httpResp.StatusCode}
	resp.Body, err = io.ReadAll(httpResp.Body)

	t.logger.Debug("request done",
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("elapsed", time.Since(start)))

	if err != nil {
		return resp, errors.Annotate(err, "reading response body")
	}
	return resp, nil
}

// CloseIdleConnections releases pooled connections.
func (t *HTTPTransport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}
