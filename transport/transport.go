// Package transport moves encoded envelopes between the client and the
// service.
//
// The client never talks to net/http directly. It hands a Request (URL,
// headers, body, timeout) to a Transport and gets back the raw response text:
//
//	client ──Request{URL, Header, Body, Timeout}──► Transport ──POST──► service
//	client ◄──Response{StatusCode, Body}────────── Transport ◄──────── service
//
// Keeping this boundary narrow is what lets tests substitute a scripted
// transport for the network.
package transport

import (
	"context"
	"net/http"
	"time"
)

// Request is one outgoing POST.
type Request struct {
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration // Zero means no timeout beyond the context's
}

// Response is the reply exactly as received. Body is opaque text; parsing it
// is the caller's business.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Transport sends a request and returns the response.
//
// A non-2xx status is not an error: it is returned as a Response so the caller
// can read the body. An error means the exchange itself failed (connection
// refused, timeout, context cancelled). When an error is returned alongside a
// non-nil Response, the Response holds whatever was received.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts an ordinary function to the Transport interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

func (f Func) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
