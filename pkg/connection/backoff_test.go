package connection

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedRand(v float64) func() float64 {
	return func() float64 { return v }
}

func TestBackoff_BaseWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	b := NewBackoff(cfg, nil)

	for n := 1; n <= cfg.MaxReconnectAttempts; n++ {
		want := float64(cfg.ReconnectInterval) * math.Pow(cfg.BackoffMultiplier, float64(n-1))
		got := b.Base(n)
		assert.LessOrEqual(t, got, cfg.MaxReconnectDelay, "attempt %d", n)
		if want <= float64(cfg.MaxReconnectDelay) {
			assert.Equal(t, time.Duration(want), got, "attempt %d", n)
		} else {
			assert.Equal(t, cfg.MaxReconnectDelay, got, "attempt %d", n)
		}
	}
}

func TestBackoff_JitterWithinFraction(t *testing.T) {
	cfg := DefaultConfig()

	for _, r := range []float64{0, 0.25, 0.5, 0.75, 0.999999} {
		b := NewBackoff(cfg, fixedRand(r))
		for n := 1; n <= cfg.MaxReconnectAttempts; n++ {
			base := float64(b.Base(n))
			got := b.Delay(n)
			if got == cfg.MinReconnectDelay {
				continue
			}
			assert.GreaterOrEqual(t, float64(got), base*(1-cfg.JitterFraction)-1, "attempt %d rand %v", n, r)
			assert.LessOrEqual(t, float64(got), base*(1+cfg.JitterFraction)+1, "attempt %d rand %v", n, r)
		}
	}
}

func TestBackoff_FloorApplied(t *testing.T) {
	b := Backoff{
		Initial:    100 * time.Millisecond,
		Max:        time.Second,
		Floor:      time.Second,
		Multiplier: 2,
		Jitter:     0.1,
		Rand:       fixedRand(0),
	}
	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, time.Second, b.Delay(2))
}

func TestBackoff_Examples(t *testing.T) {
	b := Backoff{
		Initial:    time.Second,
		Max:        60 * time.Second,
		Floor:      time.Second,
		Multiplier: 1.5,
		Jitter:     0.1,
		Rand:       fixedRand(0.5),
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 1500 * time.Millisecond},
		{attempt: 3, want: 2250 * time.Millisecond},
		{attempt: 100, want: 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}
