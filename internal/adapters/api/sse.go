package api

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/comitanigiacomo/kanso-companion/internal/core/services"
	"github.com/comitanigiacomo/kanso-companion/internal/core/stream"
)

const eventStreamPath = "/api/v1/partners/events"

// StreamTransport dials the partner SSE channel. It implements
// stream.Transport; the stream client owns reconnect policy, this
// type only knows how to open one channel and frame its events.
type StreamTransport struct {
	session *services.Session
	http    *http.Client
	now     func() time.Time
}

func NewStreamTransport(session *services.Session) *StreamTransport {
	return &StreamTransport{
		session: session,
		// No client-level timeout: the response body stays open for
		// the life of the channel. Cancellation comes from ctx.
		http: &http.Client{},
		now:  time.Now,
	}
}

func (t *StreamTransport) Connect(ctx context.Context) (stream.Receiver, error) {
	if t.session.Expired(t.now()) {
		return nil, fmt.Errorf("session token expired, not dialing stream")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.session.BaseURL()+eventStreamPath, nil)
	if err != nil {
		return nil, fmt.Errorf("building stream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.session.Token())
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dialing stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream endpoint returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		resp.Body.Close()
		return nil, fmt.Errorf("stream endpoint returned content type %q", ct)
	}

	return newSSEReceiver(resp.Body), nil
}

// sseReceiver frames a text/event-stream body into (event, data)
// pairs. "event:" names the event, "data:" lines accumulate until the
// blank line that dispatches the frame; comment and retry lines are
// skipped.
type sseReceiver struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newSSEReceiver(body io.ReadCloser) *sseReceiver {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseReceiver{body: body, scanner: scanner}
}

func (r *sseReceiver) Next() (string, []byte, error) {
	name := ""
	var data []string

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if name == "" && len(data) == 0 {
				continue
			}
			if name == "" {
				name = "message"
			}
			return name, []byte(strings.Join(data, "\n")), nil
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment.
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := r.scanner.Err(); err != nil {
		return "", nil, err
	}
	return "", nil, io.EOF
}

func (r *sseReceiver) Close() error {
	return r.body.Close()
}
