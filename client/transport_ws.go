package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// observation is a terminal condition reported by a transport. The first
// observation to land in the journey's one-shot channel wins; the rest are
// dropped.
type observation struct {
	signed    bool
	cancelled bool
	expired   bool
	err       error
}

// offer performs the non-blocking one-shot send. Duplicate completions from
// the losing transport fall into the default case and are ignored.
func offer(out chan<- observation, obs observation) {
	select {
	case out <- obs:
	default:
	}
}

// WSConn is the subset of a WebSocket connection the push-channel transport
// needs. *websocket.Conn satisfies it; tests substitute fakes.
type WSConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// WSDialer opens the payload's push channel.
type WSDialer func(ctx context.Context, url string) (WSConn, error)

// dialGorilla is the default dialer.
func dialGorilla(ctx context.Context, url string) (WSConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// statusMessage is the push-channel wire format. The service streams
// housekeeping messages (welcome, countdown, opened) before the terminal one
// carrying a non-null signed field.
type statusMessage struct {
	Signed           *bool  `json:"signed"`
	Expired          *bool  `json:"expired"`
	ExpiresInSeconds *int   `json:"expires_in_seconds"`
	Opened           *bool  `json:"opened"`
	PayloadUUID      string `json:"payload_uuidv4"`
}

// wsTransport watches a payload's push channel for a terminal status. Close
// is idempotent and safe to call concurrently with run, from normal
// completion and from a timeout firing at once.
type wsTransport struct {
	dial   WSDialer
	url    string
	logger *slog.Logger

	mu     sync.Mutex
	conn   WSConn
	closed chan struct{}
	once   sync.Once
}

func newWSTransport(dial WSDialer, url string, logger *slog.Logger) *wsTransport {
	return &wsTransport{
		dial:   dial,
		url:    url,
		logger: logger,
		closed: make(chan struct{}),
	}
}

// Close tears the transport down. Idempotent.
func (t *wsTransport) Close() {
	t.once.Do(func() {
		close(t.closed)
		t.mu.Lock()
		if t.conn != nil {
			_ = t.conn.Close()
		}
		t.mu.Unlock()
	})
}

// run dials the push channel and reads status messages until a terminal one
// arrives, the transport is closed, or the context ends.
func (t *wsTransport) run(ctx context.Context, out chan<- observation) {
	conn, err := t.dial(ctx, t.url)
	if err != nil {
		if ctx.Err() == nil && !t.isClosed() {
			offer(out, observation{err: fmt.Errorf("push channel dial failed: %w", err)})
		}
		return
	}

	t.mu.Lock()
	select {
	case <-t.closed:
		// Closed while dialing; drop the late connection.
		t.mu.Unlock()
		_ = conn.Close()
		return
	default:
		t.conn = conn
	}
	t.mu.Unlock()

	// Unblock the read loop when the journey context ends.
	go func() {
		select {
		case <-ctx.Done():
			t.Close()
		case <-t.closed:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || t.isClosed() {
				return
			}
			offer(out, observation{err: fmt.Errorf("push channel error: %w", err)})
			return
		}

		var msg statusMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.logger.Debug("ignoring unparseable push message", "error", err)
			continue
		}

		switch {
		case msg.Signed != nil:
			if *msg.Signed {
				t.logger.Debug("push channel observed signed payload", "payload", msg.PayloadUUID)
				offer(out, observation{signed: true})
			} else {
				t.logger.Debug("push channel observed rejected payload", "payload", msg.PayloadUUID)
				offer(out, observation{cancelled: true})
			}
			return
		case msg.Expired != nil && *msg.Expired:
			offer(out, observation{expired: true})
			return
		case msg.ExpiresInSeconds != nil && *msg.ExpiresInSeconds <= 0:
			offer(out, observation{expired: true})
			return
		default:
			// Welcome/opened/countdown traffic; keep waiting.
		}
	}
}

func (t *wsTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}
