package tvstream

import (
	"github.com/tvstream/tvstream-go/auth"
	"github.com/tvstream/tvstream-go/stream"
)

// Option configures a Streamer. Options are shared with the stream package;
// the engine constructors accept the same set.
type Option = stream.Option

// Re-exported engine options, so callers only import the root package.
var (
	// WithEndpoint overrides the WebSocket endpoint.
	WithEndpoint = stream.WithEndpoint

	// WithOrigin overrides the Origin header sent on the upgrade request.
	WithOrigin = stream.WithOrigin

	// WithToken sets the auth token. Empty values keep the anonymous token.
	WithToken = stream.WithToken

	// WithSessionCookie attaches a sessionid cookie to the upgrade request.
	WithSessionCookie = stream.WithSessionCookie

	// WithInitialBars sets the history countback requested per pair.
	// Non-positive values keep the default of 300.
	WithInitialBars = stream.WithInitialBars

	// WithQueueCapacity bounds each consumer queue; 0 means unbounded.
	WithQueueCapacity = stream.WithQueueCapacity

	// WithReconnectDelays overrides the reconnect backoff bounds.
	WithReconnectDelays = stream.WithReconnectDelays

	// WithLogger sets a zerolog logger for engine diagnostics.
	WithLogger = stream.WithLogger

	// WithMetrics sets a metrics collector.
	WithMetrics = stream.WithMetrics

	// WithMiddleware wraps the inbound frame handler.
	WithMiddleware = stream.WithMiddleware

	// WithDialer injects a transport dialer. Test seam.
	WithDialer = stream.WithDialer
)

// WithDiscoveredAuth resolves session cookies from the environment or the
// local browser store and applies whatever was found. Without credentials
// the connection stays anonymous.
func WithDiscoveredAuth() Option {
	cookies := auth.Discover()
	return func(c *stream.Client) {
		if cookies.AuthToken != "" {
			stream.WithToken(cookies.AuthToken)(c)
		}
		if cookies.SessionID != "" {
			stream.WithSessionCookie(cookies.SessionID)(c)
		}
	}
}
