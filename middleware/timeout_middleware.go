package middleware

import (
	"context"
	"time"

	"github.com/juju/errors"

	"ujs-rpc/message"
)

type result struct {
	resp *message.Response
	err  error
}

// Timeout bounds a call. The caller gets control back when the deadline
// passes even if the handler below ignores its context; the late reply is
// discarded.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan result, 1)
			go func() {
				resp, err := next(ctx, req)
				done <- result{resp: resp, err: err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, errors.Annotatef(ctx.Err(), "request timed out after %v", timeout)
				}
				return nil, errors.Trace(ctx.Err())
			}
		}
	}
}
