package middleware

import (
	"context"

	"github.com/juju/errors"
	"golang.org/x/time/rate"

	"ujs-rpc/message"
)

// ErrRateLimited is returned when the local token bucket is empty.
const ErrRateLimited = errors.ConstError("rate limit exceeded")

// RateLimit creates a token bucket limiter shared by every call through the
// returned middleware. Calls that find the bucket empty fail immediately,
// before anything is sent.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			if !limiter.Allow() {
				return nil, errors.Annotate(ErrRateLimited, req.Method)
			}
			return next(ctx, req)
		}
	}
}
