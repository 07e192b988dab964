package connection

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes reconnect delays: exponential growth capped at Max, then
// symmetric jitter, then floored at Floor.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Floor      time.Duration
	Multiplier float64
	Jitter     float64

	// Rand returns values in [0, 1). Nil uses math/rand.
	Rand func() float64
}

// NewBackoff derives a Backoff from cfg.
func NewBackoff(cfg Config, rnd func() float64) Backoff {
	return Backoff{
		Initial:    cfg.ReconnectInterval,
		Max:        cfg.MaxReconnectDelay,
		Floor:      cfg.MinReconnectDelay,
		Multiplier: cfg.BackoffMultiplier,
		Jitter:     cfg.JitterFraction,
		Rand:       rnd,
	}
}

// Base returns the delay for attempt (1-based) before jitter.
func (b Backoff) Base(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt-1))
	if math.IsInf(d, 0) || d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}

// Delay returns the jittered delay for attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base(attempt)
	r := b.Rand
	if r == nil {
		r = rand.Float64
	}
	jitter := float64(base) * b.Jitter * (r()*2 - 1)
	d := time.Duration(float64(base) + jitter)
	if d < b.Floor {
		return b.Floor
	}
	return d
}
