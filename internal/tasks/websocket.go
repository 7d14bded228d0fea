package tasks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/desertthunder/muzictl/internal/shared"
	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// WebSocketTransport subscribes over a WebSocket. Each text frame carries one event.
type WebSocketTransport struct {
	dialer *websocket.Dialer
	header http.Header
}

// NewWebSocketTransport creates a WebSocket transport. A nil dialer uses [websocket.DefaultDialer].
func NewWebSocketTransport(dialer *websocket.Dialer, header http.Header) *WebSocketTransport {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WebSocketTransport{dialer: dialer, header: header}
}

// WebSocketURL rewrites an http(s) URL to ws(s). ws and wss URLs are returned unchanged.
func WebSocketURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q for websocket", shared.ErrInvalidArgument, u.Scheme)
	}
	return u.String(), nil
}

func (t *WebSocketTransport) Open(ctx context.Context, rawURL string) (Stream, error) {
	wsURL, err := WebSocketURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, resp, err := t.dialer.DialContext(ctx, wsURL, t.header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, &subscriptionError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
		}
		return nil, err
	}

	s := &wsStream{conn: conn, done: make(chan struct{})}
	go s.watch(ctx)
	return s, nil
}

type wsStream struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

// watch unblocks a pending read when ctx ends.
func (s *wsStream) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		s.conn.Close()
	case <-s.done:
	}
}

func (s *wsStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mt, data, err := s.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if mt != websocket.TextMessage {
		return nil, &shared.MalformedProgressError{Payload: fmt.Sprintf("<%d bytes>", len(data)), Err: fmt.Errorf("unexpected binary frame")}
	}
	return data, nil
}

func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		err = s.conn.Close()
	})
	return err
}
