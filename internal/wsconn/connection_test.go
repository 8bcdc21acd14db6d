package wsconn

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tvstream/tvstream-go/protocol"
)

// scriptTransport feeds a fixed sequence of inbound frames and records every
// outbound frame.
type scriptTransport struct {
	in chan string

	mu   sync.Mutex
	sent []string

	closeOnce sync.Once
	closed    chan struct{}
}

func newScriptTransport(frames ...string) *scriptTransport {
	tr := &scriptTransport{
		in:     make(chan string, len(frames)),
		closed: make(chan struct{}),
	}
	for _, f := range frames {
		tr.in <- f
	}
	return tr
}

func (t *scriptTransport) Send(frame string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, frame)
	return nil
}

func (t *scriptTransport) Recv() (string, error) {
	select {
	case frame := <-t.in:
		return frame, nil
	case <-t.closed:
		return "", io.EOF
	}
}

func (t *scriptTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *scriptTransport) sentFrames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.sent))
	copy(out, t.sent)
	return out
}

func runUntilDrained(t *testing.T, tr *scriptTransport, handler func(ctx context.Context, frame string) error) error {
	t.Helper()
	conn := NewConnection(Config{Transport: tr, Handler: handler, Logger: zerolog.Nop()})

	done := make(chan error, 1)
	go func() { done <- conn.Run(context.Background()) }()

	// Close once the scripted input is consumed so Run unblocks.
	go func() {
		for {
			if len(tr.in) == 0 {
				time.Sleep(10 * time.Millisecond)
				tr.Close()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestConnectionHeartbeatEcho(t *testing.T) {
	raw := protocol.EncodeFrame("~h~7")
	tr := newScriptTransport(raw)

	var handled []string
	err := runUntilDrained(t, tr, func(ctx context.Context, frame string) error {
		handled = append(handled, frame)
		return nil
	})
	if err == nil {
		t.Fatal("Run should surface the transport EOF")
	}

	sent := tr.sentFrames()
	if len(sent) != 1 || sent[0] != raw {
		t.Fatalf("sent = %v, want verbatim echo of %q", sent, raw)
	}
	if len(handled) != 0 {
		t.Errorf("heartbeat reached the handler: %v", handled)
	}
}

func TestConnectionReassemblesChunks(t *testing.T) {
	full := protocol.EncodeFrame(`{"m":"qsd","p":[]}`) + protocol.EncodeFrame(`{"m":"du","p":[]}`)
	// Split mid-envelope.
	tr := newScriptTransport(full[:9], full[9:])

	var handled []string
	_ = runUntilDrained(t, tr, func(ctx context.Context, frame string) error {
		handled = append(handled, frame)
		return nil
	})

	want := []string{`{"m":"qsd","p":[]}`, `{"m":"du","p":[]}`}
	if len(handled) != len(want) {
		t.Fatalf("handled %d frames, want %d: %v", len(handled), len(want), handled)
	}
	for i := range want {
		if handled[i] != want[i] {
			t.Errorf("handled[%d] = %q, want %q", i, handled[i], want[i])
		}
	}
}

func TestConnectionHandlerErrorKeepsStreaming(t *testing.T) {
	tr := newScriptTransport(
		protocol.EncodeFrame("first"),
		protocol.EncodeFrame("second"),
	)

	var handled []string
	_ = runUntilDrained(t, tr, func(ctx context.Context, frame string) error {
		handled = append(handled, frame)
		if frame == "first" {
			return errors.New("boom")
		}
		return nil
	})

	if len(handled) != 2 {
		t.Fatalf("handled %d frames, want 2 (stream must survive handler errors)", len(handled))
	}
}

func TestConnectionFramingErrorFatal(t *testing.T) {
	tr := newScriptTransport("garbage without envelope")

	err := runUntilDrained(t, tr, func(ctx context.Context, frame string) error { return nil })
	if !errors.Is(err, protocol.ErrBadFrame) {
		t.Fatalf("Run err = %v, want ErrBadFrame", err)
	}
}

func TestConnectionCloseIdempotent(t *testing.T) {
	tr := newScriptTransport()
	conn := NewConnection(Config{Transport: tr, Logger: zerolog.Nop()})

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
