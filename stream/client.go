package stream

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tvstream/tvstream-go/internal/limiter"
	"github.com/tvstream/tvstream-go/internal/wsconn"
	"github.com/tvstream/tvstream-go/metrics"
	"github.com/tvstream/tvstream-go/middleware"
	"github.com/tvstream/tvstream-go/protocol"
)

// ErrClosed is returned when an operation is attempted on a closed engine.
var ErrClosed = errors.New("client closed")

// State is the engine's connection lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateHandshaking
	StateSubscribing
	StateStreaming
	StateBackoff
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	case StateBackoff:
		return "backoff"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is the streaming engine. It owns one upstream connection at a time,
// replays all subscriptions after every (re)connect and fans decoded events
// out through its hub. All errors on the background connection are converted
// into reconnects; nothing propagates to consumers except a clean channel
// close when the engine shuts down.
type Client struct {
	url       string
	origin    string
	token     string
	sessionID string

	initialBars      int
	queueCapacity    int
	reconnectInitial time.Duration
	reconnectMax     time.Duration
	bufferLen        int

	dialer       wsconn.Dialer
	logger       zerolog.Logger
	metrics      *metrics.WSCollector
	middleware   middleware.Middleware
	frameLimiter *limiter.FrameLimiter

	hub    *Hub
	buffer *BarBuffer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	state atomic.Int32

	mu      sync.Mutex
	pairs   []protocol.Subscription
	pairSet map[protocol.Subscription]struct{}
	conn    *wsconn.Connection
	session *wsconn.Session
	started bool
	closed  bool
}

// NewClient creates an engine for the given subscriptions. The connection is
// not opened until Start.
func NewClient(pairs []protocol.Subscription, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		url:              DefaultEndpoint,
		origin:           DefaultOrigin,
		token:            AnonymousToken,
		initialBars:      DefaultInitialBars,
		reconnectInitial: defaultReconnectInitial,
		reconnectMax:     defaultReconnectMax,
		bufferLen:        defaultBufferLen,
		dialer:           wsconn.Dial,
		logger:           zerolog.Nop(),
		ctx:              ctx,
		cancel:           cancel,
		done:             make(chan struct{}),
		pairSet:          make(map[protocol.Subscription]struct{}),
	}
	for _, sub := range pairs {
		if _, dup := c.pairSet[sub]; dup {
			continue
		}
		c.pairSet[sub] = struct{}{}
		c.pairs = append(c.pairs, sub)
	}
	for _, opt := range opts {
		opt(c)
	}

	c.hub = NewHub(c.queueCapacity, c.logger, c.metrics)
	c.buffer = NewBarBuffer(c.bufferLen)
	return c
}

// Start launches the reconnect loop. Calling Start on a started or closed
// client is a no-op.
func (c *Client) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run()
}

// State returns the engine's current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Hub exposes the broadcast hub for subscribing to decoded events.
func (c *Client) Hub() *Hub {
	return c.hub
}

// Bars returns the retained recent bars for a pair, oldest first.
func (c *Client) Bars(symbol, interval string) []protocol.Candle {
	return c.buffer.Bars(symbol, interval)
}

// Subscribe adds a pair at runtime. Adding a pair that is already subscribed
// is idempotent. When a connection is live the subscribe frames go out
// immediately; otherwise the pair is picked up by the next replay.
func (c *Client) Subscribe(sub protocol.Subscription) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if _, dup := c.pairSet[sub]; dup {
		c.mu.Unlock()
		return nil
	}
	c.pairSet[sub] = struct{}{}
	c.pairs = append(c.pairs, sub)
	conn, session := c.conn, c.session
	c.mu.Unlock()

	if conn == nil || session == nil {
		return nil
	}
	if err := c.sendSubscribe(conn, session, sub); err != nil {
		// The reconnect loop replays every pair on the next attempt.
		c.logger.Warn().Err(err).
			Str("symbol", sub.Symbol).Str("interval", sub.Interval).
			Msg("subscribe send failed")
	}
	return nil
}

// Unsubscribe removes a pair and retracts its series from a live
// connection. Unknown pairs are ignored.
func (c *Client) Unsubscribe(sub protocol.Subscription) {
	c.mu.Lock()
	if _, ok := c.pairSet[sub]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pairSet, sub)
	for i, p := range c.pairs {
		if p == sub {
			c.pairs = append(c.pairs[:i], c.pairs[i+1:]...)
			break
		}
	}
	symbolStillUsed := false
	for p := range c.pairSet {
		if p.Symbol == sub.Symbol {
			symbolStillUsed = true
			break
		}
	}
	conn, session := c.conn, c.session
	c.mu.Unlock()

	if conn == nil || session == nil {
		return
	}
	for _, seriesID := range session.SeriesFor(sub) {
		session.UnregisterSeries(seriesID)
		if err := conn.Send(c.ctx, protocol.RemoveSeries(session.ChartSession(), seriesID)); err != nil {
			return
		}
	}
	if !symbolStillUsed {
		session.DropQuoteSymbol(sub.Symbol)
		_ = conn.Send(c.ctx, protocol.QuoteRemoveSymbols(session.QuoteSession(), sub.Symbol))
	}
}

// Close stops the reconnect loop, closes the transport and the hub, and
// terminates all subscriber channels. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	started := c.started
	conn := c.conn
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	if started {
		<-c.done
	} else {
		c.state.Store(int32(StateClosed))
		c.hub.Close()
	}
}

// run is the reconnect loop. An attempt that reached the streaming state
// resets the backoff delay; every failed attempt doubles it up to the cap,
// jittered by ±20%.
func (c *Client) run() {
	defer func() {
		c.state.Store(int32(StateClosed))
		c.hub.Close()
		close(c.done)
	}()

	delay := c.reconnectInitial
	for {
		if c.ctx.Err() != nil {
			return
		}

		streamed, err := c.connectAndStream()
		if c.ctx.Err() != nil {
			return
		}
		if streamed {
			delay = c.reconnectInitial
		}

		c.logger.Warn().Err(err).Dur("retry_in", delay).Msg("connection lost, reconnecting")
		if c.metrics != nil {
			c.metrics.RecordReconnection()
		}

		c.state.Store(int32(StateBackoff))
		if !c.sleep(jitter(delay)) {
			return
		}
		delay *= 2
		if delay > c.reconnectMax {
			delay = c.reconnectMax
		}
	}
}

// connectAndStream performs one full connection attempt: dial, handshake,
// subscription replay, then blocking read until the transport fails. It
// reports whether the attempt reached the streaming state, so the reconnect
// loop can reset its backoff.
func (c *Client) connectAndStream() (bool, error) {
	c.state.Store(int32(StateConnecting))

	transport, err := c.dialer(c.ctx, wsconn.DialConfig{
		URL:       c.url,
		Origin:    c.origin,
		SessionID: c.sessionID,
		Timeout:   defaultDialTimeout,
	})
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	// Session and series identifiers are scoped to one socket; every attempt
	// starts from scratch.
	session := wsconn.NewSession(c.token)
	conn := wsconn.NewConnection(wsconn.Config{
		Transport:  transport,
		Handler:    c.makeHandler(session),
		Middleware: c.middleware,
		Limiter:    c.frameLimiter,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return false, ErrClosed
	}
	c.conn = conn
	c.session = session
	pairs := make([]protocol.Subscription, len(c.pairs))
	copy(pairs, c.pairs)
	c.mu.Unlock()

	defer func() {
		_ = conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.session = nil
		c.mu.Unlock()
	}()

	if c.metrics != nil {
		c.metrics.RecordConnection(true)
		defer c.metrics.RecordConnection(false)
	}

	c.state.Store(int32(StateHandshaking))
	err = session.EnsureHandshake(func(frame string) error {
		return conn.Send(c.ctx, frame)
	})
	if err != nil {
		return false, fmt.Errorf("handshake: %w", err)
	}

	c.state.Store(int32(StateSubscribing))
	for _, sub := range pairs {
		if err := c.sendSubscribe(conn, session, sub); err != nil {
			return false, fmt.Errorf("subscribe %s/%s: %w", sub.Symbol, sub.Interval, err)
		}
	}

	c.state.Store(int32(StateStreaming))
	c.logger.Info().Int("pairs", len(pairs)).Msg("streaming")
	return true, conn.Run(c.ctx)
}

// sendSubscribe emits the subscribe sequence for one pair in protocol order:
// quote_add_symbols (first time the symbol appears on this connection),
// resolve_symbol, create_series.
func (c *Client) sendSubscribe(conn *wsconn.Connection, session *wsconn.Session, sub protocol.Subscription) error {
	if session.MarkQuoteSymbol(sub.Symbol) {
		if err := conn.Send(c.ctx, protocol.QuoteAddSymbols(session.QuoteSession(), sub.Symbol)); err != nil {
			session.DropQuoteSymbol(sub.Symbol)
			return err
		}
	}

	seriesID := wsconn.NewSeriesID()
	alias := sub.Symbol + "_" + seriesID
	session.RegisterSeries(seriesID, sub)

	if err := conn.Send(c.ctx, protocol.ResolveSymbol(session.ChartSession(), alias, sub.Symbol)); err != nil {
		return err
	}
	return conn.Send(c.ctx, protocol.CreateSeries(session.ChartSession(), seriesID, alias, sub.Interval, c.initialBars))
}

// makeHandler builds the per-frame handler decoding payloads against the
// session's series registry and publishing events to the hub.
func (c *Client) makeHandler(session *wsconn.Session) middleware.FrameHandler {
	return func(ctx context.Context, payload string) error {
		for _, ev := range protocol.DecodeFrame(payload, session) {
			switch typed := ev.(type) {
			case protocol.Tick:
				if c.metrics != nil {
					c.metrics.RecordTick()
				}
			case protocol.Candle:
				if c.metrics != nil {
					c.metrics.RecordCandle()
				}
				c.buffer.Append(typed)
			}
			c.hub.Publish(ev)
		}
		return nil
	}
}

// sleep waits for d or until the engine is cancelled. It reports false on
// cancellation.
func (c *Client) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// jitter spreads a delay by ±20% so reconnecting clients do not stampede.
func jitter(d time.Duration) time.Duration {
	f := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(d) * f)
}
