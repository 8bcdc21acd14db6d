// Package middleware provides composable wrappers around the per-frame
// handler of a WebSocket connection.
package middleware

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// Logger is a minimal logging interface compatible with stdlib log.Logger
// and easily adapted to other frameworks (zerolog, zap, slog, ...).
type Logger interface {
	Printf(format string, v ...interface{})
}

// FrameHandler processes one decoded protocol payload.
type FrameHandler func(ctx context.Context, frame string) error

// Middleware wraps a frame handler.
type Middleware func(FrameHandler) FrameHandler

// MetricsCollector is the subset of the metrics collector middleware needs.
type MetricsCollector interface {
	RecordFrameReceived(bytes int)
	RecordError()
}

// Chain composes middleware. The first middleware is outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(handler FrameHandler) FrameHandler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// Logging logs each inbound frame and the handler outcome. Used by the CLI
// debug flag to trace raw protocol traffic.
func Logging(logger Logger) Middleware {
	if logger == nil {
		return func(next FrameHandler) FrameHandler {
			return next
		}
	}

	return func(next FrameHandler) FrameHandler {
		return func(ctx context.Context, frame string) error {
			start := time.Now()

			logger.Printf("[WS] <- %s", frame)

			err := next(ctx, frame)

			if err != nil {
				logger.Printf("[WS] frame error: %v (%v)", err, time.Since(start))
			}
			return err
		}
	}
}

// Metrics records per-frame counters through the collector.
func Metrics(collector MetricsCollector) Middleware {
	if collector == nil {
		return func(next FrameHandler) FrameHandler {
			return next
		}
	}

	return func(next FrameHandler) FrameHandler {
		return func(ctx context.Context, frame string) error {
			err := next(ctx, frame)
			if err != nil {
				collector.RecordError()
			}
			return err
		}
	}
}

// Recovery converts handler panics into errors so a malformed frame cannot
// take down the reader loop.
func Recovery(logger Logger) Middleware {
	return func(next FrameHandler) FrameHandler {
		return func(ctx context.Context, frame string) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if logger != nil {
						logger.Printf("[WS PANIC] recovered: %v\n%s", r, debug.Stack())
					}
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()
			return next(ctx, frame)
		}
	}
}

// Timeout bounds the processing time of a single frame.
func Timeout(timeout time.Duration) Middleware {
	return func(next FrameHandler) FrameHandler {
		return func(ctx context.Context, frame string) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- next(ctx, frame)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return fmt.Errorf("frame processing timeout: %w", ctx.Err())
			}
		}
	}
}
