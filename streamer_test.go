package tvstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tvstream/tvstream-go/internal/wsconn"
	"github.com/tvstream/tvstream-go/protocol"
)

type fakeTransport struct {
	in chan string

	mu   sync.Mutex
	sent []string

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan string, 64), closed: make(chan struct{})}
}

func (t *fakeTransport) Send(frame string) error {
	t.mu.Lock()
	t.sent = append(t.sent, frame)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Recv() (string, error) {
	select {
	case frame := <-t.in:
		return frame, nil
	case <-t.closed:
		return "", io.EOF
	}
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// seriesID waits for the engine to send create_series and returns the series
// identifier it chose.
func (t *fakeTransport) seriesID(tb testing.TB) string {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		t.mu.Lock()
		sent := append([]string(nil), t.sent...)
		t.mu.Unlock()
		for _, raw := range sent {
			payloads, _, err := protocol.SplitFrames(raw)
			if err != nil {
				continue
			}
			for _, payload := range payloads {
				var msg struct {
					M string            `json:"m"`
					P []json.RawMessage `json:"p"`
				}
				if json.Unmarshal([]byte(payload), &msg) != nil || msg.M != "create_series" || len(msg.P) < 2 {
					continue
				}
				var id string
				if json.Unmarshal(msg.P[1], &id) == nil && id != "" {
					return id
				}
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	tb.Fatal("create_series never sent")
	return ""
}

func fakeStreamer(t *testing.T, pairs []Pair) (*Streamer, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	dialer := func(ctx context.Context, cfg wsconn.DialConfig) (wsconn.Transport, error) {
		return tr, nil
	}
	s, err := NewStreamer(pairs, WithDialer(dialer))
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	return s, tr
}

func TestNewStreamerValidatesPairs(t *testing.T) {
	_, err := NewStreamer([]Pair{{Symbol: "X:Y", Interval: "7m"}})
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("err = %v, want ErrInvalidInterval", err)
	}
}

func TestStreamerSubscribeFiltersCandles(t *testing.T) {
	s, tr := fakeStreamer(t, []Pair{{Symbol: "binance:btcusdt", Interval: "1m"}})
	defer s.Close()

	candles, cancel := s.Subscribe()
	defer cancel()

	seriesID := tr.seriesID(t)
	tr.in <- protocol.EncodeFrame(`{"m":"qsd","p":["qs_x",{"n":"BINANCE:BTCUSDT","v":{"lp":1.5,"volume":2,"upd":1700000000000}}]}`)
	tr.in <- protocol.EncodeFrame(`{"m":"du","p":["cs_x",{"` + seriesID + `":{"s":[{"i":0,"v":[1700000000,1,2,0.5,1.5,3,1]}]}}]}`)

	select {
	case c := <-candles:
		// Symbol was uppercased on construction; the tick never surfaces here.
		if c.Symbol != "BINANCE:BTCUSDT" || c.Interval != "1" {
			t.Errorf("candle pair = %s/%s", c.Symbol, c.Interval)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no candle received")
	}
}

func TestStreamerSubscribeTicks(t *testing.T) {
	s, tr := fakeStreamer(t, []Pair{{Symbol: "BINANCE:BTCUSDT", Interval: "1m"}})
	defer s.Close()

	ticks, cancel := s.SubscribeTicks()
	defer cancel()

	tr.seriesID(t)
	tr.in <- protocol.EncodeFrame(`{"m":"qsd","p":["qs_x",{"n":"BINANCE:BTCUSDT","v":{"lp":42.125,"volume":7,"upd":1700000000000}}]}`)

	select {
	case tick := <-ticks:
		if tick.Price.String() != "42.125" {
			t.Errorf("price = %s", tick.Price)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick received")
	}
}

func TestStreamerOnCandle(t *testing.T) {
	s, tr := fakeStreamer(t, []Pair{{Symbol: "X:Y", Interval: "1m"}})
	defer s.Close()

	got := make(chan Candle, 1)
	dispose, err := s.OnCandle("x:y", "1m", func(c Candle) { got <- c })
	if err != nil {
		t.Fatalf("OnCandle: %v", err)
	}
	defer dispose()

	seriesID := tr.seriesID(t)
	tr.in <- protocol.EncodeFrame(`{"m":"du","p":["cs_x",{"` + seriesID + `":{"s":[{"i":0,"v":[1700000000,1,2,0.5,1.5,3,1]}]}}]}`)

	select {
	case c := <-got:
		if c.Symbol != "X:Y" {
			t.Errorf("symbol = %s", c.Symbol)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestStreamerCloseClosesChannels(t *testing.T) {
	s, _ := fakeStreamer(t, []Pair{{Symbol: "X:Y", Interval: "1m"}})

	candles, _ := s.Subscribe()
	s.Close()
	s.Close()

	select {
	case _, ok := <-candles:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Error("channel did not close")
	}
}
