package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/syncwire/pkg/connection"
	"github.com/bft-labs/syncwire/pkg/envelope"
)

// Transport and store backend names.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"

	StoreMemory    = "memory"
	StoreFile      = "file"
	StoreRedis     = "redis"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

// DefaultEndpoint is used when no endpoint is configured.
const DefaultEndpoint = "ws://localhost:8080/sync"

// Config holds CLI configuration for syncwire.
type Config struct {
	Endpoint  string
	Transport string
	Source    string

	MQTTClientID       string
	MQTTUsername       string
	MQTTPassword       string
	MQTTPublishTopic   string
	MQTTSubscribeTopic string
	MQTTQoS            int

	Store            string
	StateDir         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	PostgresDSN      string
	FirestoreProject string
	QueueCodec       string

	ReconnectInterval    time.Duration
	MaxReconnectDelay    time.Duration
	MinReconnectDelay    time.Duration
	MaxReconnectAttempts int
	BackoffMultiplier    float64
	JitterFraction       float64
	HeartbeatInterval    time.Duration
	HeartbeatTimeout     time.Duration
	QueueCapacity        int
	PauseCooldown        time.Duration
	AckTimeout           time.Duration

	AutoReconnect bool
	Queue         bool
	Heartbeat     bool

	LogLevel    string
	WatchConfig bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	conn := connection.DefaultConfig()
	return Config{
		Endpoint:             DefaultEndpoint,
		Transport:            TransportWebSocket,
		Source:               envelope.DefaultSource,
		MQTTPublishTopic:     "syncwire/up",
		MQTTSubscribeTopic:   "syncwire/down",
		MQTTQoS:              1,
		Store:                StoreFile,
		StateDir:             "", // Derived from the home directory during Validate
		RedisAddr:            "localhost:6379",
		QueueCodec:           "json",
		ReconnectInterval:    conn.ReconnectInterval,
		MaxReconnectDelay:    conn.MaxReconnectDelay,
		MinReconnectDelay:    conn.MinReconnectDelay,
		MaxReconnectAttempts: conn.MaxReconnectAttempts,
		BackoffMultiplier:    conn.BackoffMultiplier,
		JitterFraction:       conn.JitterFraction,
		HeartbeatInterval:    conn.HeartbeatInterval,
		HeartbeatTimeout:     conn.HeartbeatTimeout,
		QueueCapacity:        conn.QueueCapacity,
		PauseCooldown:        conn.PauseCooldown,
		AckTimeout:           conn.DefaultAckTimeout,
		AutoReconnect:        true,
		Queue:                true,
		Heartbeat:            true,
		LogLevel:             "info",
		WatchConfig:          true,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	c.Transport = strings.ToLower(c.Transport)
	switch c.Transport {
	case TransportWebSocket:
	case TransportMQTT:
		if c.MQTTClientID == "" {
			host, _ := os.Hostname()
			c.MQTTClientID = "syncwire-" + host
		}
		if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
			return fmt.Errorf("mqtt qos must be 0, 1 or 2")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	c.Store = strings.ToLower(c.Store)
	switch c.Store {
	case StoreMemory, StoreRedis:
	case StoreFile:
		if c.StateDir == "" {
			c.StateDir = DefaultStateDir()
		}
		if c.StateDir == "" {
			return fmt.Errorf("state-dir is required for the file store")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres-dsn is required for the postgres store")
		}
	case StoreFirestore:
		if c.FirestoreProject == "" {
			return fmt.Errorf("firestore-project is required for the firestore store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	if c.QueueCodec != "json" && c.QueueCodec != "msgpack" {
		return fmt.Errorf("unknown queue codec %q", c.QueueCodec)
	}

	return c.ConnectionConfig().Validate()
}

// ConnectionConfig converts the CLI configuration into manager tunables.
func (c Config) ConnectionConfig() connection.Config {
	conn := connection.DefaultConfig()
	conn.Endpoint = c.Endpoint
	conn.Source = c.Source
	conn.ReconnectInterval = c.ReconnectInterval
	conn.MaxReconnectDelay = c.MaxReconnectDelay
	conn.MinReconnectDelay = c.MinReconnectDelay
	conn.MaxReconnectAttempts = c.MaxReconnectAttempts
	conn.BackoffMultiplier = c.BackoffMultiplier
	conn.JitterFraction = c.JitterFraction
	conn.HeartbeatInterval = c.HeartbeatInterval
	conn.HeartbeatTimeout = c.HeartbeatTimeout
	conn.QueueCapacity = c.QueueCapacity
	conn.PauseCooldown = c.PauseCooldown
	conn.DefaultAckTimeout = c.AckTimeout
	conn.AutoReconnect = c.AutoReconnect
	conn.EnableQueue = c.Queue
	conn.EnableHeartbeat = c.Heartbeat
	return conn
}

// DefaultStateDir returns ~/.syncwire/state, or "" without a home directory.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".syncwire", "state")
	}
	return ""
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
