package stream

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tvstream/tvstream-go/internal/limiter"
	"github.com/tvstream/tvstream-go/internal/wsconn"
	"github.com/tvstream/tvstream-go/metrics"
	"github.com/tvstream/tvstream-go/middleware"
)

const (
	// DefaultEndpoint is the chart cluster that currently accepts direct
	// WebSocket upgrades.
	DefaultEndpoint = "wss://prodata.tradingview.com/socket.io/websocket"

	// DefaultOrigin is sent on the upgrade request; edge nodes answer 403
	// without a matching Origin header.
	DefaultOrigin = "https://www.tradingview.com"

	// AnonymousToken authenticates connections without a user session.
	AnonymousToken = "unauthorized_user_token"

	// DefaultInitialBars is the countback requested per series when the
	// caller does not choose one.
	DefaultInitialBars = 300

	defaultReconnectInitial = time.Second
	defaultReconnectMax     = 60 * time.Second
	defaultDialTimeout      = 10 * time.Second
	defaultBufferLen        = 500
)

// Option is a functional option for configuring the streaming client.
type Option func(*Client)

// WithEndpoint overrides the WebSocket endpoint.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

// WithOrigin overrides the Origin header sent on the upgrade request.
func WithOrigin(origin string) Option {
	return func(c *Client) {
		c.origin = origin
	}
}

// WithToken sets the auth token sent in set_auth_token.
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.token = token
		}
	}
}

// WithSessionCookie attaches a sessionid cookie to the upgrade request.
func WithSessionCookie(sessionID string) Option {
	return func(c *Client) {
		c.sessionID = sessionID
	}
}

// WithInitialBars sets the history countback requested per series. Values
// below 1 fall back to the default; the wire value is additionally clamped
// to the server minimum.
func WithInitialBars(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.initialBars = n
		}
	}
}

// WithQueueCapacity bounds each subscriber queue. 0 (the default) means
// unbounded; a positive value drops events for a subscriber whose queue is
// full.
func WithQueueCapacity(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.queueCapacity = n
		}
	}
}

// WithReconnectDelays overrides the initial and maximum reconnect backoff.
func WithReconnectDelays(initial, max time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.reconnectInitial = initial
		}
		if max > 0 {
			c.reconnectMax = max
		}
	}
}

// WithDialer injects a transport dialer. Tests use this to run the engine
// against scripted transports.
func WithDialer(d wsconn.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithLogger sets a zerolog logger for engine diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets a metrics collector.
func WithMetrics(collector *metrics.WSCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithMiddleware wraps the inbound frame handler.
func WithMiddleware(mw middleware.Middleware) Option {
	return func(c *Client) {
		c.middleware = mw
	}
}

// WithFrameLimiter overrides the outbound frame pacing.
func WithFrameLimiter(l *limiter.FrameLimiter) Option {
	return func(c *Client) {
		c.frameLimiter = l
	}
}

// WithBarRetention sets how many recent bars are kept per pair for
// Bars(). 0 disables retention.
func WithBarRetention(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.bufferLen = n
		}
	}
}
