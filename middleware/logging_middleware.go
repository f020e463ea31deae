package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ujs-rpc/message"
)

// Logging records every call with its duration. Failures are logged at warn
// level, successes at debug.
func Logging(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("id", req.ID),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("call failed", append(fields, zap.Error(err))...)
				return resp, err
			}
			logger.Debug("call done", fields...)
			return resp, nil
		}
	}
}
