// Package metrics collects lightweight counters for streaming connections.
package metrics

import (
	"sync/atomic"
)

// WSCollector accumulates WebSocket traffic counters. All methods are safe
// for concurrent use; reads are approximate snapshots.
type WSCollector struct {
	framesReceived atomic.Int64
	framesSent     atomic.Int64
	bytesReceived  atomic.Int64
	bytesSent      atomic.Int64
	heartbeats     atomic.Int64
	errors         atomic.Int64

	ticks   atomic.Int64
	candles atomic.Int64
	drops   atomic.Int64

	activeConnections atomic.Int32
	totalConnections  atomic.Int64
	reconnections     atomic.Int64
}

// NewWSCollector creates a collector with all counters at zero.
func NewWSCollector() *WSCollector {
	return &WSCollector{}
}

// RecordFrameReceived records one inbound transport frame.
func (w *WSCollector) RecordFrameReceived(bytes int) {
	w.framesReceived.Add(1)
	w.bytesReceived.Add(int64(bytes))
}

// RecordFrameSent records one outbound transport frame.
func (w *WSCollector) RecordFrameSent(bytes int) {
	w.framesSent.Add(1)
	w.bytesSent.Add(int64(bytes))
}

// RecordHeartbeat records an echoed server heartbeat.
func (w *WSCollector) RecordHeartbeat() {
	w.heartbeats.Add(1)
}

// RecordError records a transport or decode error.
func (w *WSCollector) RecordError() {
	w.errors.Add(1)
}

// RecordTick records one decoded tick event.
func (w *WSCollector) RecordTick() {
	w.ticks.Add(1)
}

// RecordCandle records one decoded candle event.
func (w *WSCollector) RecordCandle() {
	w.candles.Add(1)
}

// RecordDrop records an event dropped because a subscriber queue was full.
func (w *WSCollector) RecordDrop() {
	w.drops.Add(1)
}

// RecordConnection records a connection state change.
func (w *WSCollector) RecordConnection(connected bool) {
	if connected {
		w.activeConnections.Add(1)
		w.totalConnections.Add(1)
	} else {
		w.activeConnections.Add(-1)
	}
}

// RecordReconnection records a reconnect attempt.
func (w *WSCollector) RecordReconnection() {
	w.reconnections.Add(1)
}

// Drops returns the number of events dropped due to subscriber overflow.
func (w *WSCollector) Drops() int64 {
	return w.drops.Load()
}

// Reconnections returns the number of reconnect attempts.
func (w *WSCollector) Reconnections() int64 {
	return w.reconnections.Load()
}

// GetMetrics returns current counters as a map.
func (w *WSCollector) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"frames_received":    w.framesReceived.Load(),
		"frames_sent":        w.framesSent.Load(),
		"bytes_received":     w.bytesReceived.Load(),
		"bytes_sent":         w.bytesSent.Load(),
		"heartbeats":         w.heartbeats.Load(),
		"errors":             w.errors.Load(),
		"ticks":              w.ticks.Load(),
		"candles":            w.candles.Load(),
		"drops":              w.drops.Load(),
		"active_connections": w.activeConnections.Load(),
		"total_connections":  w.totalConnections.Load(),
		"reconnections":      w.reconnections.Load(),
	}
}

// Reset zeroes all counters. Useful for tests.
func (w *WSCollector) Reset() {
	w.framesReceived.Store(0)
	w.framesSent.Store(0)
	w.bytesReceived.Store(0)
	w.bytesSent.Store(0)
	w.heartbeats.Store(0)
	w.errors.Store(0)
	w.ticks.Store(0)
	w.candles.Store(0)
	w.drops.Store(0)
	w.totalConnections.Store(0)
	w.reconnections.Store(0)
}
