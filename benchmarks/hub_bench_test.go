package benchmarks

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tvstream/tvstream-go/protocol"
	"github.com/tvstream/tvstream-go/stream"
)

func benchCandle() protocol.Candle {
	v := 12.5
	return protocol.Candle{
		Symbol:    "BINANCE:BTCUSDT",
		Interval:  "1",
		TimeOpen:  time.Unix(1700000000, 0).UTC(),
		TimeClose: time.Unix(1700000060, 0).UTC(),
		Open:      decimal.NewFromFloat(100.1),
		High:      decimal.NewFromFloat(101.2),
		Low:       decimal.NewFromFloat(99.3),
		Close:     decimal.NewFromFloat(100.7),
		Volume:    &v,
		Closed:    true,
	}
}

// BenchmarkHubPublish benchmarks fan-out to 8 draining subscribers
func BenchmarkHubPublish(b *testing.B) {
	hub := stream.NewHub(0, zerolog.Nop(), nil)
	defer hub.Close()

	for i := 0; i < 8; i++ {
		sub := hub.Subscribe()
		go func() {
			for range sub.Events() {
			}
		}()
	}

	ev := benchCandle()
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		hub.Publish(ev)
	}
}

// BenchmarkHubPublishBounded benchmarks fan-out with bounded queues where
// the subscribers never drain and publishes turn into drops
func BenchmarkHubPublishBounded(b *testing.B) {
	hub := stream.NewHub(64, zerolog.Nop(), nil)
	defer hub.Close()

	for i := 0; i < 8; i++ {
		hub.Subscribe()
	}

	ev := benchCandle()
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		hub.Publish(ev)
	}
}

// BenchmarkBarBufferAppend benchmarks ring-buffer retention at capacity
func BenchmarkBarBufferAppend(b *testing.B) {
	buf := stream.NewBarBuffer(500)
	ev := benchCandle()
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		buf.Append(ev)
	}
}
