// Package ack correlates outbound envelopes that require confirmation with
// the callers waiting on them.
//
// Each registration gets a single-resolution Future that completes with the
// acknowledgment payload or fails with a *TimeoutError. Timeouts are wall
// clock from registration; a reconnect does not reset them and a late ack
// for an expired id is discarded.
package ack

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/bft-labs/syncwire/pkg/log"
)

type pendingAck struct {
	future       *Future
	registeredAt time.Time
	timer        *time.Timer
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*pendingAck
	closed  bool
	logger  log.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger log.Logger) *Tracker {
	return &Tracker{
		pending: make(map[string]*pendingAck),
		logger:  log.OrNoop(logger).With(log.Component("ack")),
	}
}

// Register starts tracking id. Registering an id that is already pending
// returns the existing future.
func (t *Tracker) Register(id string, timeout time.Duration) *Future {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.pending[id]; ok {
		return p.future
	}
	f := newFuture(id)
	if t.closed {
		f.complete(Result{Err: ErrClosed})
		return f
	}

	p := &pendingAck{future: f, registeredAt: time.Now()}
	p.timer = time.AfterFunc(timeout, func() { t.expire(id, p, timeout) })
	t.pending[id] = p
	return f
}

// Resolve completes the future registered for id with payload. It reports
// the round trip time and whether a pending registration was found.
func (t *Tracker) Resolve(id string, payload json.RawMessage) (time.Duration, bool) {
	t.mu.Lock()
	p, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
		p.timer.Stop()
	}
	t.mu.Unlock()

	if !ok {
		t.logger.Debug("discarding ack for unknown or expired message", log.String("message_id", id))
		return 0, false
	}
	p.future.complete(Result{Payload: payload})
	return time.Since(p.registeredAt), true
}

// Pending returns the number of outstanding registrations.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close fails every outstanding future with ErrClosed and rejects new
// registrations.
func (t *Tracker) Close() {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[string]*pendingAck)
	t.closed = true
	t.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		p.future.complete(Result{Err: ErrClosed})
	}
}

func (t *Tracker) expire(id string, p *pendingAck, timeout time.Duration) {
	t.mu.Lock()
	current, ok := t.pending[id]
	if !ok || current != p {
		t.mu.Unlock()
		return
	}
	delete(t.pending, id)
	t.mu.Unlock()

	t.logger.Warn("ack timed out", log.String("message_id", id), log.Duration("timeout", timeout))
	p.future.complete(Result{Err: &TimeoutError{MessageID: id, Timeout: timeout}})
}
