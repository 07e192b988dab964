package connection

import (
	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/queue"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(m *Manager) { m.logger = log.OrNoop(l) }
}

// WithQueue uses q as the outbound queue instead of an in-memory one sized
// by Config.QueueCapacity. Callers that want persistence should Load q first.
func WithQueue(q *queue.Queue) Option {
	return func(m *Manager) { m.queue = q }
}

// WithStateObserver registers fn for state transitions.
func WithStateObserver(fn StateObserver) Option {
	return func(m *Manager) { m.observers = append(m.observers, fn) }
}

// WithRand overrides the jitter source. fn must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(m *Manager) { m.rand = fn }
}
