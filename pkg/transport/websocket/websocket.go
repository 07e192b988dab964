// Package websocket implements transport.Dialer over WebSocket text frames.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/bft-labs/syncwire/pkg/transport"
)

// DefaultReadLimit bounds a single inbound frame.
const DefaultReadLimit = 4 << 20

// Dialer dials WebSocket endpoints (ws:// or wss://).
type Dialer struct {
	// Header is sent with the opening handshake.
	Header http.Header

	// HTTPClient overrides the client used for the handshake.
	HTTPClient *http.Client

	// ReadLimit caps inbound frame size. Zero selects DefaultReadLimit.
	ReadLimit int64
}

// Dial opens a WebSocket connection to endpoint.
func (d *Dialer) Dial(ctx context.Context, endpoint string) (transport.Conn, error) {
	ws, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{ //nolint:bodyclose // websocket.Dial closes the response body internally
		HTTPHeader: d.Header,
		HTTPClient: d.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing websocket: %w", err)
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	ws.SetReadLimit(limit)
	return NewConn(ws), nil
}

// Conn wraps a *websocket.Conn as a transport.Conn.
type Conn struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps an established connection, e.g. one accepted by a server.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, closed: make(chan struct{})}
}

// Send writes frame as a text message.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}
	return c.ws.Write(ctx, websocket.MessageText, frame)
}

// Receive returns the next text message. Binary messages are skipped.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			select {
			case <-c.closed:
				return nil, transport.ErrClosed
			default:
			}
			var ce websocket.CloseError
			if errors.As(err, &ce) {
				return nil, fmt.Errorf("websocket closed (%d %s): %w", ce.Code, ce.Reason, transport.ErrClosed)
			}
			return nil, err
		}
		if typ == websocket.MessageText {
			return data, nil
		}
	}
}

// Close performs a normal closure.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.ws.Close(websocket.StatusNormalClosure, "bye")
	})
	return err
}
