// Package transport defines the connection primitive the sync layer drives.
//
// The primitive is assumed to be already authenticated and encrypted. A Conn
// carries opaque frames; envelope encoding happens above it. A Receive error
// is how the transport reports close or failure, and it is terminal for that
// Conn.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send and Receive once a Conn has been closed.
var ErrClosed = errors.New("transport: connection closed")

// Conn is one open bidirectional connection.
type Conn interface {
	// Send transmits one frame.
	Send(ctx context.Context, frame []byte) error

	// Receive blocks for the next inbound frame.
	Receive(ctx context.Context) ([]byte, error)

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Dialer opens connections to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, endpoint string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, endpoint string) (Conn, error) {
	return f(ctx, endpoint)
}
