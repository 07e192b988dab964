package connection

import (
	"fmt"
	"time"

	"github.com/bft-labs/syncwire/pkg/envelope"
)

// Default values for Config.
const (
	DefaultReconnectInterval         = 1 * time.Second
	DefaultMaxReconnectAttempts      = 15
	DefaultMaxReconnectDelay         = 60 * time.Second
	DefaultBackoffMultiplier         = 1.5
	DefaultJitterFraction            = 0.1
	DefaultMinReconnectDelay         = 1 * time.Second
	DefaultHeartbeatInterval         = 30 * time.Second
	DefaultHeartbeatTimeout          = 10 * time.Second
	DefaultHeartbeatFailureThreshold = 3
	DefaultQueueCapacity             = 100
	DefaultPauseCooldown             = 5 * time.Minute
	DefaultAckTimeout                = 10 * time.Second
	DefaultWriteTimeout              = 5 * time.Second
	DefaultDialTimeout               = 10 * time.Second
)

// Config holds the manager's tunables.
type Config struct {
	// Endpoint is passed verbatim to the transport dialer.
	Endpoint string

	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	MaxReconnectDelay    time.Duration
	BackoffMultiplier    float64
	JitterFraction       float64
	// MinReconnectDelay floors the jittered backoff delay.
	MinReconnectDelay time.Duration

	HeartbeatInterval time.Duration
	// HeartbeatTimeout is how long after sending a heartbeat a response
	// must arrive. It must be shorter than HeartbeatInterval.
	HeartbeatTimeout          time.Duration
	HeartbeatFailureThreshold int

	QueueCapacity int
	PauseCooldown time.Duration

	DefaultAckTimeout time.Duration
	WriteTimeout      time.Duration
	DialTimeout       time.Duration

	AutoReconnect   bool
	EnableQueue     bool
	EnableHeartbeat bool

	// Source labels envelopes the manager creates itself.
	Source string
}

// DefaultConfig returns a Config with every feature enabled.
func DefaultConfig() Config {
	return Config{
		ReconnectInterval:         DefaultReconnectInterval,
		MaxReconnectAttempts:      DefaultMaxReconnectAttempts,
		MaxReconnectDelay:         DefaultMaxReconnectDelay,
		BackoffMultiplier:         DefaultBackoffMultiplier,
		JitterFraction:            DefaultJitterFraction,
		MinReconnectDelay:         DefaultMinReconnectDelay,
		HeartbeatInterval:         DefaultHeartbeatInterval,
		HeartbeatTimeout:          DefaultHeartbeatTimeout,
		HeartbeatFailureThreshold: DefaultHeartbeatFailureThreshold,
		QueueCapacity:             DefaultQueueCapacity,
		PauseCooldown:             DefaultPauseCooldown,
		DefaultAckTimeout:         DefaultAckTimeout,
		WriteTimeout:              DefaultWriteTimeout,
		DialTimeout:               DefaultDialTimeout,
		AutoReconnect:             true,
		EnableQueue:               true,
		EnableHeartbeat:           true,
		Source:                    envelope.DefaultSource,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.Endpoint == "":
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	case c.ReconnectInterval <= 0:
		return fmt.Errorf("%w: reconnect interval must be positive", ErrInvalidConfig)
	case c.MaxReconnectAttempts < 0:
		return fmt.Errorf("%w: max reconnect attempts must not be negative", ErrInvalidConfig)
	case c.MaxReconnectDelay < c.ReconnectInterval:
		return fmt.Errorf("%w: max reconnect delay must be at least the reconnect interval", ErrInvalidConfig)
	case c.BackoffMultiplier < 1:
		return fmt.Errorf("%w: backoff multiplier must be >= 1", ErrInvalidConfig)
	case c.JitterFraction < 0 || c.JitterFraction >= 1:
		return fmt.Errorf("%w: jitter fraction must be in [0, 1)", ErrInvalidConfig)
	case c.MinReconnectDelay < 0:
		return fmt.Errorf("%w: min reconnect delay must not be negative", ErrInvalidConfig)
	case c.QueueCapacity <= 0:
		return fmt.Errorf("%w: queue capacity must be positive", ErrInvalidConfig)
	case c.PauseCooldown < 0:
		return fmt.Errorf("%w: pause cooldown must not be negative", ErrInvalidConfig)
	case c.DefaultAckTimeout <= 0, c.WriteTimeout <= 0, c.DialTimeout <= 0:
		return fmt.Errorf("%w: ack, write and dial timeouts must be positive", ErrInvalidConfig)
	}
	if c.EnableHeartbeat {
		if c.HeartbeatInterval <= 0 || c.HeartbeatTimeout <= 0 {
			return fmt.Errorf("%w: heartbeat interval and timeout must be positive", ErrInvalidConfig)
		}
		if c.HeartbeatTimeout >= c.HeartbeatInterval {
			return fmt.Errorf("%w: heartbeat timeout must be shorter than the interval", ErrInvalidConfig)
		}
		if c.HeartbeatFailureThreshold <= 0 {
			return fmt.Errorf("%w: heartbeat failure threshold must be positive", ErrInvalidConfig)
		}
	}
	return nil
}
