package tasks

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
)

// maxEventBytes bounds a single event's data so a misbehaving server cannot exhaust memory.
const maxEventBytes = 1 << 20

var errEventTooLarge = errors.New("event exceeds size limit")

// SSETransport subscribes over Server-Sent Events.
//
// Only unnamed (or "message") events are delivered, matching what a browser EventSource hands to
// its onmessage handler. Comments, id and retry fields are ignored.
type SSETransport struct {
	client *http.Client
	header http.Header
}

// NewSSETransport creates an SSE transport. A nil client uses [http.DefaultClient].
func NewSSETransport(client *http.Client, header http.Header) *SSETransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &SSETransport{client: client, header: header}
}

func (t *SSETransport) Open(ctx context.Context, rawURL string) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range t.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &subscriptionError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/event-stream" {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected content type %q for event stream", resp.Header.Get("Content-Type"))
	}

	return &sseStream{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	once   sync.Once
	closed bool
	mu     sync.Mutex
	// skipLF drops a leading '\n' that completes a CRLF split across reads.
	skipLF bool
}

// Next returns the data of the next dispatched event.
func (s *sseStream) Next(ctx context.Context) ([]byte, error) {
	var data bytes.Buffer
	var event string

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, err := s.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) && s.isClosed() {
				return nil, io.ErrClosedPipe
			}
			return nil, err
		}

		if line == "" {
			// an empty data buffer is never dispatched
			if data.Len() > 1 && (event == "" || event == "message") {
				return bytes.TrimSuffix(data.Bytes(), []byte("\n")), nil
			}
			data.Reset()
			event = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			if data.Len()+len(value) > maxEventBytes {
				return nil, errEventTooLarge
			}
			data.WriteString(value)
			data.WriteByte('\n')
		case "event":
			event = value
		}
	}
}

// readLine returns one line without its terminator. CRLF, LF and lone CR all end a line.
func (s *sseStream) readLine() (string, error) {
	var b strings.Builder
	for {
		c, err := s.reader.ReadByte()
		if err != nil {
			return "", err
		}
		if s.skipLF {
			s.skipLF = false
			if c == '\n' {
				continue
			}
		}
		switch c {
		case '\n':
			return b.String(), nil
		case '\r':
			// only look at buffered bytes; a CR-terminated line must not wait on the network
			if s.reader.Buffered() == 0 {
				s.skipLF = true
			} else if next, err := s.reader.Peek(1); err == nil && next[0] == '\n' {
				_, _ = s.reader.ReadByte()
			}
			return b.String(), nil
		default:
			if b.Len() > maxEventBytes {
				return "", errEventTooLarge
			}
			b.WriteByte(c)
		}
	}
}

func (s *sseStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *sseStream) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		err = s.body.Close()
	})
	return err
}
