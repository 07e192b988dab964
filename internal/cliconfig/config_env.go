package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (SYNCWIRE_*).
// It respects flags that have been explicitly set (changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("endpoint", os.Getenv("SYNCWIRE_ENDPOINT"), &cfg.Endpoint)
	s.setString("transport", os.Getenv("SYNCWIRE_TRANSPORT"), &cfg.Transport)
	s.setString("source", os.Getenv("SYNCWIRE_SOURCE"), &cfg.Source)

	s.setString("mqtt-client-id", os.Getenv("SYNCWIRE_MQTT_CLIENT_ID"), &cfg.MQTTClientID)
	s.setString("mqtt-username", os.Getenv("SYNCWIRE_MQTT_USERNAME"), &cfg.MQTTUsername)
	s.setString("mqtt-password", os.Getenv("SYNCWIRE_MQTT_PASSWORD"), &cfg.MQTTPassword)
	s.setString("mqtt-publish-topic", os.Getenv("SYNCWIRE_MQTT_PUBLISH_TOPIC"), &cfg.MQTTPublishTopic)
	s.setString("mqtt-subscribe-topic", os.Getenv("SYNCWIRE_MQTT_SUBSCRIBE_TOPIC"), &cfg.MQTTSubscribeTopic)
	if err := s.setIntFromString("mqtt-qos", os.Getenv("SYNCWIRE_MQTT_QOS"), &cfg.MQTTQoS); err != nil {
		return err
	}

	s.setString("store", os.Getenv("SYNCWIRE_STORE"), &cfg.Store)
	s.setString("state-dir", os.Getenv("SYNCWIRE_STATE_DIR"), &cfg.StateDir)
	s.setString("redis-addr", os.Getenv("SYNCWIRE_REDIS_ADDR"), &cfg.RedisAddr)
	s.setString("redis-password", os.Getenv("SYNCWIRE_REDIS_PASSWORD"), &cfg.RedisPassword)
	if err := s.setIntFromString("redis-db", os.Getenv("SYNCWIRE_REDIS_DB"), &cfg.RedisDB); err != nil {
		return err
	}
	s.setString("postgres-dsn", os.Getenv("SYNCWIRE_POSTGRES_DSN"), &cfg.PostgresDSN)
	s.setString("firestore-project", os.Getenv("SYNCWIRE_FIRESTORE_PROJECT"), &cfg.FirestoreProject)
	s.setString("queue-codec", os.Getenv("SYNCWIRE_QUEUE_CODEC"), &cfg.QueueCodec)

	if err := s.setDuration("reconnect-interval", os.Getenv("SYNCWIRE_RECONNECT_INTERVAL"), &cfg.ReconnectInterval); err != nil {
		return err
	}
	if err := s.setDuration("max-reconnect-delay", os.Getenv("SYNCWIRE_MAX_RECONNECT_DELAY"), &cfg.MaxReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("min-reconnect-delay", os.Getenv("SYNCWIRE_MIN_RECONNECT_DELAY"), &cfg.MinReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("heartbeat-interval", os.Getenv("SYNCWIRE_HEARTBEAT_INTERVAL"), &cfg.HeartbeatInterval); err != nil {
		return err
	}
	if err := s.setDuration("heartbeat-timeout", os.Getenv("SYNCWIRE_HEARTBEAT_TIMEOUT"), &cfg.HeartbeatTimeout); err != nil {
		return err
	}
	if err := s.setDuration("pause-cooldown", os.Getenv("SYNCWIRE_PAUSE_COOLDOWN"), &cfg.PauseCooldown); err != nil {
		return err
	}
	if err := s.setDuration("ack-timeout", os.Getenv("SYNCWIRE_ACK_TIMEOUT"), &cfg.AckTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("max-reconnect-attempts", os.Getenv("SYNCWIRE_MAX_RECONNECT_ATTEMPTS"), &cfg.MaxReconnectAttempts); err != nil {
		return err
	}
	if err := s.setIntFromString("queue-capacity", os.Getenv("SYNCWIRE_QUEUE_CAPACITY"), &cfg.QueueCapacity); err != nil {
		return err
	}
	if err := s.setFloatFromString("backoff-multiplier", os.Getenv("SYNCWIRE_BACKOFF_MULTIPLIER"), &cfg.BackoffMultiplier); err != nil {
		return err
	}
	if err := s.setFloatFromString("jitter", os.Getenv("SYNCWIRE_JITTER"), &cfg.JitterFraction); err != nil {
		return err
	}

	s.setBoolFromString("auto-reconnect", os.Getenv("SYNCWIRE_AUTO_RECONNECT"), &cfg.AutoReconnect)
	s.setBoolFromString("queue", os.Getenv("SYNCWIRE_QUEUE"), &cfg.Queue)
	s.setBoolFromString("heartbeat", os.Getenv("SYNCWIRE_HEARTBEAT"), &cfg.Heartbeat)

	s.setString("log-level", os.Getenv("SYNCWIRE_LOG_LEVEL"), &cfg.LogLevel)
	s.setBoolFromString("watch-config", os.Getenv("SYNCWIRE_WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}
