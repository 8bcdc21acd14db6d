package wsconn

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tvstream/tvstream-go/internal/limiter"
	"github.com/tvstream/tvstream-go/metrics"
	"github.com/tvstream/tvstream-go/middleware"
	"github.com/tvstream/tvstream-go/protocol"
)

// Config assembles a Connection.
type Config struct {
	Transport  Transport
	Handler    middleware.FrameHandler
	Middleware middleware.Middleware
	Limiter    *limiter.FrameLimiter
	Metrics    *metrics.WSCollector
	Logger     zerolog.Logger
}

// Connection drives one transport: it serializes outbound frames, runs the
// reader loop, echoes heartbeats and feeds complete payloads to the frame
// handler. The transport is owned exclusively by the Connection; nothing
// else reads or writes it.
type Connection struct {
	transport Transport
	handler   middleware.FrameHandler
	limiter   *limiter.FrameLimiter
	metrics   *metrics.WSCollector
	logger    zerolog.Logger

	writeMu sync.Mutex

	closeOnce sync.Once
}

// NewConnection wraps an open transport. The middleware chain, when present,
// is applied around the frame handler.
func NewConnection(cfg Config) *Connection {
	handler := cfg.Handler
	if handler == nil {
		handler = func(ctx context.Context, frame string) error { return nil }
	}
	if cfg.Middleware != nil {
		handler = cfg.Middleware(handler)
	}
	return &Connection{
		transport: cfg.Transport,
		handler:   handler,
		limiter:   cfg.Limiter,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Send writes one protocol frame. Writes are serialized; the frame limiter,
// when configured, paces bursts of subscribe traffic.
func (c *Connection) Send(ctx context.Context, frame string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.transport.Send(frame); err != nil {
		if c.metrics != nil {
			c.metrics.RecordError()
		}
		return fmt.Errorf("send frame: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RecordFrameSent(len(frame))
	}
	return nil
}

// Run reads the transport until it fails or ctx is cancelled. Heartbeats are
// echoed back verbatim before anything else in the same transport frame is
// parsed; the server drops connections whose heartbeats go unanswered.
// A framing error is fatal for the connection and surfaces to the caller.
func (c *Connection) Run(ctx context.Context) error {
	buffer := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := c.transport.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("transport recv: %w", err)
		}
		if c.metrics != nil {
			c.metrics.RecordFrameReceived(len(raw))
		}

		if strings.HasPrefix(raw, "~m~") && strings.Contains(raw, "~h~") {
			c.writeMu.Lock()
			echoErr := c.transport.Send(raw)
			c.writeMu.Unlock()
			if echoErr != nil {
				c.logger.Warn().Err(echoErr).Msg("heartbeat echo failed")
			} else if c.metrics != nil {
				c.metrics.RecordHeartbeat()
			}
			continue
		}

		buffer += raw
		frames, remainder, err := protocol.SplitFrames(buffer)
		if err != nil {
			return fmt.Errorf("split frames: %w", err)
		}
		buffer = remainder

		for _, payload := range frames {
			if protocol.IsHeartbeat(payload) {
				continue
			}
			if err := c.handler(ctx, payload); err != nil {
				// Payload-level problems are logged and the frame dropped;
				// the stream keeps going.
				c.logger.Warn().Err(err).Msg("frame handler error")
				if c.metrics != nil {
					c.metrics.RecordError()
				}
			}
		}
	}
}

// Close shuts the transport down. Safe to call more than once and
// concurrently with Run; the reader unblocks with an error.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.transport.Close()
	})
	return err
}
