package ack

import (
	"context"
	"encoding/json"
	"sync"
)

// Result is the outcome of a pending acknowledgment.
type Result struct {
	Payload json.RawMessage
	Err     error
}

// Future is completed exactly once.
type Future struct {
	id     string
	once   sync.Once
	done   chan struct{}
	result Result
}

func newFuture(id string) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// ID returns the id of the envelope awaiting acknowledgment.
func (f *Future) ID() string { return f.id }

// Done is closed once the future completes.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the future completes or ctx is done.
func (f *Future) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-f.done:
		return f.result.Payload, f.result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome and whether the future has completed.
func (f *Future) Result() (Result, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return Result{}, false
	}
}

func (f *Future) complete(r Result) bool {
	completed := false
	f.once.Do(func() {
		f.result = r
		close(f.done)
		completed = true
	})
	return completed
}

// Rejected returns a future for id that has already failed with err.
func Rejected(id string, err error) *Future {
	f := newFuture(id)
	f.complete(Result{Err: err})
	return f
}
