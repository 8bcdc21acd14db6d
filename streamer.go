// Package tvstream is a client for TradingView's private WebSocket feed. It
// streams live ticks and candles for (symbol, interval) pairs and fetches
// recent candle history, reconnecting transparently when the upstream
// connection drops.
package tvstream

import (
	"strings"

	"github.com/tvstream/tvstream-go/protocol"
	"github.com/tvstream/tvstream-go/stream"
)

// Pair names one subscription before validation: an EXCHANGE:SYMBOL code and
// an interval in any accepted spelling ("1m", "60", "1h", "D", …).
type Pair struct {
	Symbol   string
	Interval string
}

// Event is a decoded feed event: Tick, Candle, SeriesCompleted or SymbolInfo.
type Event = protocol.Event

// Tick is a live trade print.
type Tick = protocol.Tick

// Candle is an OHLCV bar, live or historic.
type Candle = protocol.Candle

// Streamer is the public streaming surface. It owns a background engine that
// keeps one upstream connection alive and fans events out to any number of
// consumers. All consumer channels close when the streamer closes.
type Streamer struct {
	client *stream.Client
}

// NewStreamer validates the pairs, starts the background engine and returns
// a running streamer. The connection is established asynchronously;
// subscribe immediately, events arrive once the feed is up.
func NewStreamer(pairs []Pair, opts ...Option) (*Streamer, error) {
	subs := make([]protocol.Subscription, 0, len(pairs))
	for _, p := range pairs {
		sub, err := protocol.NewSubscription(p.Symbol, p.Interval)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	client := stream.NewClient(subs, opts...)
	client.Start()
	return &Streamer{client: client}, nil
}

// Subscribe returns a channel of candles from every subscribed pair and a
// cancel function releasing it. The channel closes on cancel or when the
// streamer closes.
func (s *Streamer) Subscribe() (<-chan Candle, func()) {
	sub := s.client.Hub().Subscribe()
	out := make(chan Candle)
	go func() {
		defer close(out)
		for ev := range sub.Events() {
			if c, ok := ev.(protocol.Candle); ok {
				out <- c
			}
		}
	}()
	return out, sub.Cancel
}

// SubscribeTicks returns a channel of live ticks and a cancel function.
func (s *Streamer) SubscribeTicks() (<-chan Tick, func()) {
	sub := s.client.Hub().Subscribe()
	out := make(chan Tick)
	go func() {
		defer close(out)
		for ev := range sub.Events() {
			if t, ok := ev.(protocol.Tick); ok {
				out <- t
			}
		}
	}()
	return out, sub.Cancel
}

// SubscribeEvents returns the raw event stream, including series-completed
// and symbol metadata events.
func (s *Streamer) SubscribeEvents() (<-chan Event, func()) {
	sub := s.client.Hub().Subscribe()
	return sub.Events(), sub.Cancel
}

// OnCandle registers a callback invoked for every candle of one pair. The
// returned dispose function stops delivery. Callbacks run on a dedicated
// goroutine per registration; a slow callback delays only itself.
func (s *Streamer) OnCandle(symbol, interval string, fn func(Candle)) (func(), error) {
	sub, err := protocol.NewSubscription(symbol, interval)
	if err != nil {
		return nil, err
	}
	hubSub := s.client.Hub().Subscribe()
	go func() {
		for ev := range hubSub.Events() {
			c, ok := ev.(protocol.Candle)
			if ok && c.Symbol == sub.Symbol && c.Interval == sub.Interval {
				fn(c)
			}
		}
	}()
	return hubSub.Cancel, nil
}

// OnTick registers a callback invoked for every tick of one symbol. The
// returned dispose function stops delivery.
func (s *Streamer) OnTick(symbol string, fn func(Tick)) func() {
	symbol = strings.ToUpper(symbol)
	hubSub := s.client.Hub().Subscribe()
	go func() {
		for ev := range hubSub.Events() {
			if t, ok := ev.(protocol.Tick); ok && t.Symbol == symbol {
				fn(t)
			}
		}
	}()
	return hubSub.Cancel
}

// AddPair subscribes an additional pair at runtime.
func (s *Streamer) AddPair(symbol, interval string) error {
	sub, err := protocol.NewSubscription(symbol, interval)
	if err != nil {
		return err
	}
	return s.client.Subscribe(sub)
}

// RemovePair retracts a pair subscribed earlier. Unknown pairs are ignored.
func (s *Streamer) RemovePair(symbol, interval string) error {
	sub, err := protocol.NewSubscription(symbol, interval)
	if err != nil {
		return err
	}
	s.client.Unsubscribe(sub)
	return nil
}

// Bars returns the retained recent bars for a pair, oldest first.
func (s *Streamer) Bars(symbol, interval string) []Candle {
	sub, err := protocol.NewSubscription(symbol, interval)
	if err != nil {
		return nil
	}
	return s.client.Bars(sub.Symbol, sub.Interval)
}

// State returns the engine's connection lifecycle state.
func (s *Streamer) State() stream.State {
	return s.client.State()
}

// Close shuts the engine down and closes every consumer channel. Idempotent.
func (s *Streamer) Close() {
	s.client.Close()
}
