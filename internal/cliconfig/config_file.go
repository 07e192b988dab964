package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Endpoint  string `toml:"endpoint"`
	Transport string `toml:"transport"`
	Source    string `toml:"source"`

	MQTT struct {
		ClientID       string `toml:"client_id"`
		Username       string `toml:"username"`
		Password       string `toml:"password"`
		PublishTopic   string `toml:"publish_topic"`
		SubscribeTopic string `toml:"subscribe_topic"`
		QoS            int    `toml:"qos"`
	} `toml:"mqtt"`

	Store            string `toml:"store"`
	StateDir         string `toml:"state_dir"`
	RedisAddr        string `toml:"redis_addr"`
	RedisPassword    string `toml:"redis_password"`
	RedisDB          int    `toml:"redis_db"`
	PostgresDSN      string `toml:"postgres_dsn"`
	FirestoreProject string `toml:"firestore_project"`
	QueueCodec       string `toml:"queue_codec"`

	ReconnectInterval    string  `toml:"reconnect_interval"`
	MaxReconnectDelay    string  `toml:"max_reconnect_delay"`
	MinReconnectDelay    string  `toml:"min_reconnect_delay"`
	MaxReconnectAttempts int     `toml:"max_reconnect_attempts"`
	BackoffMultiplier    float64 `toml:"backoff_multiplier"`
	JitterFraction       float64 `toml:"jitter"`
	HeartbeatInterval    string  `toml:"heartbeat_interval"`
	HeartbeatTimeout     string  `toml:"heartbeat_timeout"`
	QueueCapacity        int     `toml:"queue_capacity"`
	PauseCooldown        string  `toml:"pause_cooldown"`
	AckTimeout           string  `toml:"ack_timeout"`

	AutoReconnect *bool `toml:"auto_reconnect"`
	Queue         *bool `toml:"queue"`
	Heartbeat     *bool `toml:"heartbeat"`

	LogLevel    string `toml:"log_level"`
	WatchConfig *bool  `toml:"watch_config"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.syncwire/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".syncwire", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("endpoint", fc.Endpoint, &cfg.Endpoint)
	s.setString("transport", fc.Transport, &cfg.Transport)
	s.setString("source", fc.Source, &cfg.Source)

	s.setString("mqtt-client-id", fc.MQTT.ClientID, &cfg.MQTTClientID)
	s.setString("mqtt-username", fc.MQTT.Username, &cfg.MQTTUsername)
	s.setString("mqtt-password", fc.MQTT.Password, &cfg.MQTTPassword)
	s.setString("mqtt-publish-topic", fc.MQTT.PublishTopic, &cfg.MQTTPublishTopic)
	s.setString("mqtt-subscribe-topic", fc.MQTT.SubscribeTopic, &cfg.MQTTSubscribeTopic)
	s.setInt("mqtt-qos", fc.MQTT.QoS, &cfg.MQTTQoS)

	s.setString("store", fc.Store, &cfg.Store)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("redis-addr", fc.RedisAddr, &cfg.RedisAddr)
	s.setString("redis-password", fc.RedisPassword, &cfg.RedisPassword)
	s.setInt("redis-db", fc.RedisDB, &cfg.RedisDB)
	s.setString("postgres-dsn", fc.PostgresDSN, &cfg.PostgresDSN)
	s.setString("firestore-project", fc.FirestoreProject, &cfg.FirestoreProject)
	s.setString("queue-codec", fc.QueueCodec, &cfg.QueueCodec)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"reconnect-interval", fc.ReconnectInterval, &cfg.ReconnectInterval},
		{"max-reconnect-delay", fc.MaxReconnectDelay, &cfg.MaxReconnectDelay},
		{"min-reconnect-delay", fc.MinReconnectDelay, &cfg.MinReconnectDelay},
		{"heartbeat-interval", fc.HeartbeatInterval, &cfg.HeartbeatInterval},
		{"heartbeat-timeout", fc.HeartbeatTimeout, &cfg.HeartbeatTimeout},
		{"pause-cooldown", fc.PauseCooldown, &cfg.PauseCooldown},
		{"ack-timeout", fc.AckTimeout, &cfg.AckTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("max-reconnect-attempts", fc.MaxReconnectAttempts, &cfg.MaxReconnectAttempts)
	s.setInt("queue-capacity", fc.QueueCapacity, &cfg.QueueCapacity)
	s.setFloat("backoff-multiplier", fc.BackoffMultiplier, &cfg.BackoffMultiplier)
	s.setFloat("jitter", fc.JitterFraction, &cfg.JitterFraction)

	s.setBool("auto-reconnect", fc.AutoReconnect, &cfg.AutoReconnect)
	s.setBool("queue", fc.Queue, &cfg.Queue)
	s.setBool("heartbeat", fc.Heartbeat, &cfg.Heartbeat)

	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
