package stream

import (
	"sync"

	"github.com/tvstream/tvstream-go/protocol"
)

// BarBuffer retains the most recent bars per (symbol, interval) pair in a
// fixed-size ring. Appends are O(1); Bars returns a snapshot in arrival
// order.
type BarBuffer struct {
	maxLen int

	mu      sync.Mutex
	buffers map[protocol.Subscription][]protocol.Candle
}

// NewBarBuffer creates a buffer keeping up to maxLen bars per pair.
func NewBarBuffer(maxLen int) *BarBuffer {
	return &BarBuffer{
		maxLen:  maxLen,
		buffers: make(map[protocol.Subscription][]protocol.Candle),
	}
}

// Append stores a bar, evicting the oldest when the ring is full.
func (b *BarBuffer) Append(c protocol.Candle) {
	if b.maxLen <= 0 {
		return
	}
	key := protocol.Subscription{Symbol: c.Symbol, Interval: c.Interval}

	b.mu.Lock()
	defer b.mu.Unlock()

	buf := b.buffers[key]
	if len(buf) >= b.maxLen {
		copy(buf, buf[1:])
		buf = buf[:len(buf)-1]
	}
	b.buffers[key] = append(buf, c)
}

// Bars returns a copy of the retained bars for a pair, oldest first.
func (b *BarBuffer) Bars(symbol, interval string) []protocol.Candle {
	key := protocol.Subscription{Symbol: symbol, Interval: interval}

	b.mu.Lock()
	defer b.mu.Unlock()

	buf := b.buffers[key]
	out := make([]protocol.Candle, len(buf))
	copy(out, buf)
	return out
}
