// Package memtransport is an in-process transport.Dialer for tests. It
// records every frame sent across all of its connections and lets the test
// inject inbound frames, drop connections and fail dials or sends.
package memtransport

import (
	"context"
	"errors"
	"sync"

	"github.com/bft-labs/syncwire/pkg/envelope"
	"github.com/bft-labs/syncwire/pkg/transport"
)

// ErrDialRefused is returned by scripted dial failures.
var ErrDialRefused = errors.New("memtransport: dial refused")

// Dialer hands out Conns and keeps a shared log of sent frames.
type Dialer struct {
	mu        sync.Mutex
	failNext  int
	failErr   error
	dials     int
	endpoints []string
	conns     []*Conn
	sent      [][]byte
	onDial    func(*Conn)
}

// NewDialer returns a Dialer whose dials succeed until told otherwise.
func NewDialer() *Dialer {
	return &Dialer{}
}

// FailNext makes the next n dials fail with err, or ErrDialRefused when err
// is nil. A negative n fails every dial until FailNext(0, nil).
func (d *Dialer) FailNext(n int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = ErrDialRefused
	}
	d.failNext = n
	d.failErr = err
}

// OnDial registers fn to run on every successfully dialed Conn before it is
// returned.
func (d *Dialer) OnDial(fn func(*Conn)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDial = fn
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(ctx context.Context, endpoint string) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.dials++
	d.endpoints = append(d.endpoints, endpoint)
	if d.failNext != 0 {
		if d.failNext > 0 {
			d.failNext--
		}
		err := d.failErr
		d.mu.Unlock()
		return nil, err
	}
	c := &Conn{
		dialer:  d,
		inbound: make(chan []byte, 64),
		dropped: make(chan error, 1),
		closed:  make(chan struct{}),
	}
	d.conns = append(d.conns, c)
	hook := d.onDial
	d.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	return c, nil
}

// Dials returns how many times Dial was called.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Endpoints returns the endpoint of every Dial call in order.
func (d *Dialer) Endpoints() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.endpoints...)
}

// Conns returns every successfully dialed Conn in order.
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Conn(nil), d.conns...)
}

// Last returns the most recently dialed Conn, or nil.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Sent returns every frame sent on any Conn in send order.
func (d *Dialer) Sent() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.sent...)
}

// SentEnvelopes parses Sent, keeping only envelopes of the given types. No
// types keeps everything.
func (d *Dialer) SentEnvelopes(types ...envelope.Type) []envelope.Envelope {
	return filter(d.Sent(), types)
}

func (d *Dialer) record(frame []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, frame)
}

// Conn is one fake connection.
type Conn struct {
	dialer *Dialer

	mu        sync.Mutex
	sent      [][]byte
	failAfter int
	failErr   error
	failing   bool
	gate      chan struct{}
	gateErr   error
	held      int

	inbound   chan []byte
	dropped   chan error
	closed    chan struct{}
	closeOnce sync.Once
}

// Send records frame unless the Conn is closed or scripted to fail.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.wait(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	if c.failing {
		if c.failAfter == 0 {
			err := c.failErr
			c.mu.Unlock()
			return err
		}
		c.failAfter--
	}
	c.sent = append(c.sent, frame)
	c.mu.Unlock()

	c.dialer.record(frame)
	return nil
}

func (c *Conn) wait(ctx context.Context) error {
	c.mu.Lock()
	gate := c.gate
	if gate == nil {
		c.mu.Unlock()
		return nil
	}
	c.held++
	c.mu.Unlock()

	var err error
	select {
	case <-gate:
	case <-ctx.Done():
		err = ctx.Err()
	case <-c.closed:
		err = transport.ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.held--
	if err == nil {
		err = c.gateErr
	}
	return err
}

// HoldSends makes every following Send wait until the returned release
// function runs, its context ends or the Conn closes. release(nil) lets held
// sends through; release(err) fails them with err.
func (c *Conn) HoldSends() (release func(err error)) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.gate = gate
	c.gateErr = nil
	c.mu.Unlock()

	var once sync.Once
	return func(err error) {
		once.Do(func() {
			c.mu.Lock()
			c.gateErr = err
			if c.gate == gate {
				c.gate = nil
			}
			c.mu.Unlock()
			close(gate)
		})
	}
}

// Held returns how many sends are currently waiting on HoldSends.
func (c *Conn) Held() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held
}

// Receive returns injected frames until the Conn is dropped or closed.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-c.inbound:
		return frame, nil
	case err := <-c.dropped:
		return nil, err
	case <-c.closed:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close marks the Conn closed.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Deliver injects an inbound frame.
func (c *Conn) Deliver(frame []byte) {
	select {
	case c.inbound <- frame:
	case <-c.closed:
	}
}

// DeliverEnvelope encodes env and injects it.
func (c *Conn) DeliverEnvelope(env envelope.Envelope) error {
	frame, err := envelope.Marshal(env)
	if err != nil {
		return err
	}
	c.Deliver(frame)
	return nil
}

// Drop simulates the peer going away: the pending or next Receive returns err.
func (c *Conn) Drop(err error) {
	if err == nil {
		err = transport.ErrClosed
	}
	select {
	case c.dropped <- err:
	default:
	}
}

// FailSends lets the next n sends succeed and fails every send after that
// with err.
func (c *Conn) FailSends(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing = true
	c.failAfter = n
	c.failErr = err
}

// Sent returns frames sent on this Conn.
func (c *Conn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// SentEnvelopes parses Sent, keeping only the given types.
func (c *Conn) SentEnvelopes(types ...envelope.Type) []envelope.Envelope {
	return filter(c.Sent(), types)
}

func filter(frames [][]byte, types []envelope.Type) []envelope.Envelope {
	out := make([]envelope.Envelope, 0, len(frames))
	for _, f := range frames {
		env, err := envelope.Parse(f)
		if err != nil {
			continue
		}
		if len(types) == 0 {
			out = append(out, env)
			continue
		}
		for _, t := range types {
			if env.Type == t {
				out = append(out, env)
				break
			}
		}
	}
	return out
}
