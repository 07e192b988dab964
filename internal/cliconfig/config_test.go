package cliconfig

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %v, want %v", cfg.Endpoint, DefaultEndpoint)
	}
	if cfg.Transport != TransportWebSocket {
		t.Errorf("Transport = %v, want websocket", cfg.Transport)
	}
	if cfg.ReconnectInterval != time.Second {
		t.Errorf("ReconnectInterval = %v, want 1s", cfg.ReconnectInterval)
	}
	if cfg.MaxReconnectAttempts != 15 {
		t.Errorf("MaxReconnectAttempts = %v, want 15", cfg.MaxReconnectAttempts)
	}
	if cfg.QueueCapacity != 100 {
		t.Errorf("QueueCapacity = %v, want 100", cfg.QueueCapacity)
	}
	if !cfg.AutoReconnect || !cfg.Queue || !cfg.Heartbeat {
		t.Errorf("feature toggles = %v/%v/%v, want all enabled", cfg.AutoReconnect, cfg.Queue, cfg.Heartbeat)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid defaults with memory store",
			mutate: func(c *Config) { c.Store = StoreMemory },
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Endpoint = "" },
			wantErr: true,
		},
		{
			name:    "unknown transport",
			mutate:  func(c *Config) { c.Transport = "carrier-pigeon" },
			wantErr: true,
		},
		{
			name: "mqtt derives client id",
			mutate: func(c *Config) {
				c.Transport = "MQTT"
				c.Endpoint = "tcp://localhost:1883"
				c.Store = StoreMemory
			},
		},
		{
			name: "mqtt rejects bad qos",
			mutate: func(c *Config) {
				c.Transport = TransportMQTT
				c.MQTTQoS = 3
			},
			wantErr: true,
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Store = StorePostgres },
			wantErr: true,
		},
		{
			name:    "firestore without project",
			mutate:  func(c *Config) { c.Store = StoreFirestore },
			wantErr: true,
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Store = "floppy" },
			wantErr: true,
		},
		{
			name:    "unknown queue codec",
			mutate:  func(c *Config) { c.QueueCodec = "xml" },
			wantErr: true,
		},
		{
			name: "invalid backoff multiplier",
			mutate: func(c *Config) {
				c.Store = StoreMemory
				c.BackoffMultiplier = 0.5
			},
			wantErr: true,
		},
		{
			name: "heartbeat timeout longer than interval",
			mutate: func(c *Config) {
				c.Store = StoreMemory
				c.HeartbeatTimeout = time.Minute
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_Derivations(t *testing.T) {
	c1 := DefaultConfig()
	c1.Transport = "MQTT"
	c1.Store = StoreMemory
	if err := c1.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c1.Transport != TransportMQTT {
		t.Errorf("Transport = %v, want mqtt", c1.Transport)
	}
	if !strings.HasPrefix(c1.MQTTClientID, "syncwire-") {
		t.Errorf("MQTTClientID = %v, want syncwire- prefix", c1.MQTTClientID)
	}

	c2 := DefaultConfig()
	c2.Store = StoreFile
	c2.StateDir = ""
	if err := c2.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if want := DefaultStateDir(); c2.StateDir != want {
		t.Errorf("StateDir = %v, want %v", c2.StateDir, want)
	}
	if filepath.Base(c2.StateDir) != "state" {
		t.Errorf("StateDir = %v, want .../state", c2.StateDir)
	}

	c3 := DefaultConfig()
	c3.StateDir = "/state"
	if err := c3.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c3.StateDir != "/state" {
		t.Errorf("StateDir = %v, want /state", c3.StateDir)
	}
}

func TestConfig_ConnectionConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Endpoint = "ws://pos.local/sync"
	cfg.Source = "register-2"
	cfg.ReconnectInterval = 2 * time.Second
	cfg.MaxReconnectAttempts = 4
	cfg.AckTimeout = 3 * time.Second
	cfg.Queue = false
	cfg.Heartbeat = false

	conn := cfg.ConnectionConfig()
	if conn.Endpoint != "ws://pos.local/sync" || conn.Source != "register-2" {
		t.Errorf("endpoint/source = %v/%v", conn.Endpoint, conn.Source)
	}
	if conn.ReconnectInterval != 2*time.Second {
		t.Errorf("ReconnectInterval = %v, want 2s", conn.ReconnectInterval)
	}
	if conn.MaxReconnectAttempts != 4 {
		t.Errorf("MaxReconnectAttempts = %v, want 4", conn.MaxReconnectAttempts)
	}
	if conn.DefaultAckTimeout != 3*time.Second {
		t.Errorf("DefaultAckTimeout = %v, want 3s", conn.DefaultAckTimeout)
	}
	if conn.EnableQueue || conn.EnableHeartbeat || !conn.AutoReconnect {
		t.Errorf("toggles = queue %v heartbeat %v reconnect %v", conn.EnableQueue, conn.EnableHeartbeat, conn.AutoReconnect)
	}
	if err := conn.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
