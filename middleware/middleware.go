// Package middleware wraps the client's call path in interceptors.
//
// A call travels through the chain like an onion:
//
//	Chain(A, B, C)(roundTrip) → A(B(C(roundTrip)))
//	A.before → B.before → C.before → roundTrip → C.after → B.after → A.after
//
// roundTrip is the innermost handler owned by the client: it encodes the
// envelope, sends it, and turns the reply into a Response or an error.
package middleware

import (
	"context"

	"ujs-rpc/message"
)

type HandlerFunc func(ctx context.Context, req *message.Request) (*message.Response, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines several middlewares into one. The first one listed is the
// outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
