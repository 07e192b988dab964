// Package router fans inbound envelopes out to handlers registered per
// envelope type.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/syncwire/pkg/envelope"
	"github.com/bft-labs/syncwire/pkg/log"
)

// Handler reacts to one inbound envelope. Handlers should return quickly;
// longer reactions belong in their own goroutine.
type Handler func(ctx context.Context, env envelope.Envelope) error

type registration struct {
	id      uint64
	handler Handler
}

// Router is safe for concurrent use. Dispatch order follows call order, and
// within one envelope handlers run in registration order.
type Router struct {
	mu       sync.RWMutex
	handlers map[envelope.Type][]registration
	nextID   uint64
	logger   log.Logger
}

// New creates an empty router.
func New(logger log.Logger) *Router {
	return &Router{
		handlers: make(map[envelope.Type][]registration),
		logger:   log.OrNoop(logger).With(log.Component("router")),
	}
}

// Subscribe registers h for envelopes of type t. The returned function
// removes exactly this registration and is safe to call more than once.
func (r *Router) Subscribe(t envelope.Type, h Handler) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.handlers[t] = append(r.handlers[t], registration{id: id, handler: h})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(t, id) })
	}
}

func (r *Router) remove(t envelope.Type, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	regs := r.handlers[t]
	for i, reg := range regs {
		if reg.id == id {
			next := make([]registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			if len(next) == 0 {
				delete(r.handlers, t)
			} else {
				r.handlers[t] = next
			}
			return
		}
	}
}

// handlerCount returns how many handlers are registered for t.
func (r *Router) handlerCount(t envelope.Type) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[t])
}

// Parse decodes an inbound frame. Malformed frames are logged and dropped.
func (r *Router) Parse(frame []byte) (envelope.Envelope, bool) {
	env, err := envelope.Parse(frame)
	if err != nil {
		r.logger.Warn("dropping malformed frame", log.Err(err), log.Int("bytes", len(frame)))
		return envelope.Envelope{}, false
	}
	return env, true
}

// Dispatch invokes every handler registered for env.Type. A failing or
// panicking handler is logged and does not stop the others. It returns the
// number of handlers that failed.
func (r *Router) Dispatch(ctx context.Context, env envelope.Envelope) int {
	r.mu.RLock()
	regs := append([]registration(nil), r.handlers[env.Type]...)
	r.mu.RUnlock()

	if len(regs) == 0 {
		r.logger.Debug("no handlers for envelope", log.String("type", string(env.Type)))
		return 0
	}

	failed := 0
	for _, reg := range regs {
		if err := invoke(ctx, reg.handler, env); err != nil {
			failed++
			r.logger.Error("handler failed",
				log.String("type", string(env.Type)),
				log.String("message_id", env.ID),
				log.Err(err),
			)
		}
	}
	return failed
}

func invoke(ctx context.Context, h Handler, env envelope.Envelope) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(ctx, env)
}
