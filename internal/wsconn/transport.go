// Package wsconn owns the WebSocket transport: dialing with the headers the
// chart server requires, the per-connection session state and the reader
// loop that echoes heartbeats and splits the length-prefixed stream.
package wsconn

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is the minimal surface the connection driver needs from a
// WebSocket. The production implementation wraps gorilla/websocket; tests
// substitute scripted fakes.
type Transport interface {
	Send(text string) error
	Recv() (string, error)
	Close() error
}

// DialConfig carries everything needed to open a transport.
type DialConfig struct {
	URL       string
	Origin    string
	SessionID string
	Timeout   time.Duration
}

// Dialer opens a Transport. Injected so engines and fetchers can run against
// fake transports in tests.
type Dialer func(ctx context.Context, cfg DialConfig) (Transport, error)

// gorillaTransport adapts *websocket.Conn to Transport. The server speaks
// text frames only.
type gorillaTransport struct {
	conn *websocket.Conn
}

// Dial opens a WebSocket to the chart server. The upgrade request must carry
// an Origin header matching the host; without it the edge nodes answer 403.
// When a session id is known it is attached as a cookie so the connection is
// authenticated.
func Dial(ctx context.Context, cfg DialConfig) (Transport, error) {
	header := http.Header{}
	if cfg.Origin != "" {
		header.Set("Origin", cfg.Origin)
	}
	if cfg.SessionID != "" {
		header.Set("Cookie", "sessionid="+cfg.SessionID)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.Timeout,
	}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial WebSocket: %w", err)
	}
	return &gorillaTransport{conn: conn}, nil
}

func (t *gorillaTransport) Send(text string) error {
	return t.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (t *gorillaTransport) Recv() (string, error) {
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		// The protocol is text-only; other frame types carry no payloads.
		if msgType != websocket.TextMessage {
			continue
		}
		return string(data), nil
	}
}

func (t *gorillaTransport) Close() error {
	_ = t.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return t.conn.Close()
}
