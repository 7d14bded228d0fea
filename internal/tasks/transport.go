package tasks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/muzictl/internal/shared"
)

// Stream is an open push channel for one job.
//
// Next blocks until the next message body arrives. Any error other than one matching
// [shared.ErrMalformedProgress] means the channel is gone. Close is idempotent.
type Stream interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Transport opens push channels. The context passed to Open bounds the lifetime of the stream.
type Transport interface {
	Open(ctx context.Context, rawURL string) (Stream, error)
}

// TransportFunc adapts a function to [Transport].
type TransportFunc func(ctx context.Context, rawURL string) (Stream, error)

func (f TransportFunc) Open(ctx context.Context, rawURL string) (Stream, error) { return f(ctx, rawURL) }

// NewTransport builds the transport for kind. header is sent with every subscription request.
func NewTransport(kind shared.TransportKind, client *http.Client, header http.Header) (Transport, error) {
	switch kind {
	case shared.TransportSSE, "":
		return NewSSETransport(client, header), nil
	case shared.TransportWebSocket:
		return NewWebSocketTransport(nil, header), nil
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownTransport, kind)
	}
}

// SessionHeader returns request headers carrying the session cookie, or nil when session is empty.
func SessionHeader(cookieName, session string) http.Header {
	if session == "" {
		return nil
	}
	c := &http.Cookie{Name: cookieName, Value: session}
	return http.Header{"Cookie": {c.String()}}
}

// subscriptionError describes a rejected subscription request.
type subscriptionError struct {
	StatusCode int
	Status     string
}

func (e *subscriptionError) Error() string {
	return fmt.Sprintf("subscription rejected: %d %s", e.StatusCode, e.Status)
}
