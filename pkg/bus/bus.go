// Package bus is the host's local domain event bus.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/syncwire/pkg/log"
)

// Handler reacts to one emitted event.
type Handler func(ctx context.Context, payload any) error

// Bus delivers named events to registered handlers.
type Bus interface {
	// Emit delivers payload to every handler registered for event.
	Emit(ctx context.Context, event string, payload any)

	// On registers h for event and returns a function removing it.
	On(event string, h Handler) func()
}

type subscription struct {
	id      uint64
	handler Handler
}

// Memory is an in-process Bus. Handlers run synchronously on the emitting
// goroutine in registration order; an error or panic in one handler is
// logged and does not stop the others.
type Memory struct {
	mu          sync.RWMutex
	subscribers map[string][]subscription
	nextID      uint64
	logger      log.Logger
}

// NewMemory creates an empty in-memory bus.
func NewMemory(logger log.Logger) *Memory {
	return &Memory{
		subscribers: make(map[string][]subscription),
		logger:      log.OrNoop(logger).With(log.Component("bus")),
	}
}

func (b *Memory) On(event string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers[event] = append(b.subscribers[event], subscription{id: id, handler: h})
	b.mu.Unlock()
	b.logger.Debug("subscription added", log.String("event", event))

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(event, id) })
	}
}

func (b *Memory) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[event]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		kept := make([]subscription, 0, len(subs)-1)
		kept = append(kept, subs[:i]...)
		kept = append(kept, subs[i+1:]...)
		if len(kept) == 0 {
			delete(b.subscribers, event)
		} else {
			b.subscribers[event] = kept
		}
		return
	}
}

func (b *Memory) Emit(ctx context.Context, event string, payload any) {
	b.mu.RLock()
	subs := b.subscribers[event]
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.Debug("no subscribers for event", log.String("event", event))
		return
	}
	for _, s := range subs {
		if err := call(ctx, s.handler, payload); err != nil {
			b.logger.Error("event handler failed", log.String("event", event), log.Err(err))
		}
	}
}

// subscriberCount returns the number of handlers registered for event.
func (b *Memory) subscriberCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[event])
}

func call(ctx context.Context, h Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, payload)
}
