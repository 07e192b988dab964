package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/syncwire/internal/cliconfig"
	"github.com/bft-labs/syncwire/pkg/bus"
	"github.com/bft-labs/syncwire/pkg/connection"
	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/queue"
	"github.com/bft-labs/syncwire/pkg/syncer"
	"github.com/bft-labs/syncwire/plugins/configwatcher"
)

const helpDescription = `
Keep a point-of-sale client in sync with its server over an unreliable network.

Highlights:
  - Reconnects with exponential backoff and jitter, pausing after repeated failures.
  - Queues outbound changes while offline and flushes them in order on reconnect.
  - Detects dead links with heartbeats and resolves conflicting entity updates.
  - Configure via file, env (SYNCWIRE_*), or flags; the config file is hot-reloaded.
`

var exampleUsage = strings.TrimSpace(`
  syncwire --endpoint wss://pos.example.com/sync --store file
  syncwire --transport mqtt --endpoint tcp://broker:1883 --mqtt-client-id register-1
  tail -f changes.ndjson | syncwire --stdin
`)

const shutdownTimeout = 5 * time.Second

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var readStdin bool

	zl := cliconfig.NewLogger(cfg.LogLevel)

	root := &cobra.Command{
		Use:     "syncwire",
		Short:   "Real-time connection and sync client",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			base := cfg
			if err := loadConfig(&cfg, cfgFile, changed); err != nil {
				return err
			}

			zl = cliconfig.NewLogger(cfg.LogLevel)
			logCfg := cfg
			if logCfg.MQTTPassword != "" {
				logCfg.MQTTPassword = "*****"
			}
			if logCfg.RedisPassword != "" {
				logCfg.RedisPassword = "*****"
			}
			if logCfg.PostgresDSN != "" {
				logCfg.PostgresDSN = "*****"
			}
			zl.Info().Interface("config", logCfg).Msg("configuration")

			return run(cmd.Context(), cfg, base, cfgFile, changed, readStdin, zl)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.syncwire/config.toml)")
	f.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "server endpoint (ws://, wss:// or an MQTT broker URL)")
	f.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport: websocket or mqtt")
	f.StringVar(&cfg.Source, "source", cfg.Source, "source label stamped on outbound envelopes")

	f.StringVar(&cfg.MQTTClientID, "mqtt-client-id", cfg.MQTTClientID, "MQTT client id (default: syncwire-<hostname>)")
	f.StringVar(&cfg.MQTTUsername, "mqtt-username", cfg.MQTTUsername, "MQTT username")
	f.StringVar(&cfg.MQTTPassword, "mqtt-password", cfg.MQTTPassword, "MQTT password")
	f.StringVar(&cfg.MQTTPublishTopic, "mqtt-publish-topic", cfg.MQTTPublishTopic, "MQTT topic for outbound envelopes")
	f.StringVar(&cfg.MQTTSubscribeTopic, "mqtt-subscribe-topic", cfg.MQTTSubscribeTopic, "MQTT topic for inbound envelopes")
	f.IntVar(&cfg.MQTTQoS, "mqtt-qos", cfg.MQTTQoS, "MQTT quality of service (0, 1 or 2)")

	f.StringVar(&cfg.Store, "store", cfg.Store, "state store: memory, file, redis, postgres or firestore")
	f.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the file store (default: $HOME/.syncwire/state)")
	f.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address")
	f.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "Redis password")
	f.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "Redis database number")
	f.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	f.StringVar(&cfg.FirestoreProject, "firestore-project", cfg.FirestoreProject, "Google Cloud project for Firestore")
	f.StringVar(&cfg.QueueCodec, "queue-codec", cfg.QueueCodec, "queue snapshot encoding: json or msgpack")

	f.DurationVar(&cfg.ReconnectInterval, "reconnect-interval", cfg.ReconnectInterval, "initial reconnect delay")
	f.DurationVar(&cfg.MaxReconnectDelay, "max-reconnect-delay", cfg.MaxReconnectDelay, "upper bound on reconnect delay")
	f.DurationVar(&cfg.MinReconnectDelay, "min-reconnect-delay", cfg.MinReconnectDelay, "lower bound on reconnect delay after jitter")
	f.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "heartbeat period")
	f.DurationVar(&cfg.HeartbeatTimeout, "heartbeat-timeout", cfg.HeartbeatTimeout, "time allowed for a heartbeat response")
	f.DurationVar(&cfg.PauseCooldown, "pause-cooldown", cfg.PauseCooldown, "how long to stay paused after exhausting reconnect attempts")
	f.DurationVar(&cfg.AckTimeout, "ack-timeout", cfg.AckTimeout, "default acknowledgment timeout")
	f.IntVar(&cfg.MaxReconnectAttempts, "max-reconnect-attempts", cfg.MaxReconnectAttempts, "reconnect attempts before pausing")
	f.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "maximum queued outbound envelopes")
	f.Float64Var(&cfg.BackoffMultiplier, "backoff-multiplier", cfg.BackoffMultiplier, "reconnect delay growth factor")
	f.Float64Var(&cfg.JitterFraction, "jitter", cfg.JitterFraction, "reconnect delay jitter fraction")

	f.BoolVar(&cfg.AutoReconnect, "auto-reconnect", cfg.AutoReconnect, "reconnect automatically after a drop")
	f.BoolVar(&cfg.Queue, "queue", cfg.Queue, "queue outbound envelopes while offline")
	f.BoolVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "send heartbeats and detect dead links")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	f.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "reload tunables when the config file changes")
	f.BoolVar(&readStdin, "stdin", false, "read newline-delimited entity changes from stdin and sync them")

	if err := root.Execute(); err != nil {
		zl.Error().Err(err).Msg("syncwire")
		os.Exit(1)
	}
}

// loadConfig applies file, then env, then validates. Flags already in cfg
// win over both because of the changed map.
func loadConfig(cfg *cliconfig.Config, cfgFile string, changed map[string]bool) error {
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	return cfg.Validate()
}

func run(parent context.Context, cfg, base cliconfig.Config, cfgFile string, changed map[string]bool, readStdin bool, zl zerolog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	logger := log.NewZerologAdapterWithLogger(zl)

	st, closer, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closer.Close()

	codec, err := queue.CodecByName(cfg.QueueCodec)
	if err != nil {
		return err
	}
	q := queue.New(st, queue.Config{Capacity: cfg.QueueCapacity, Codec: codec}, logger)
	if err := q.Load(ctx); err != nil {
		return fmt.Errorf("load queue: %w", err)
	}

	dialer, err := newDialer(cfg, logger)
	if err != nil {
		return err
	}

	m, err := connection.NewManager(cfg.ConnectionConfig(), dialer,
		connection.WithLogger(logger),
		connection.WithQueue(q),
		connection.WithStateObserver(func(prev, cur connection.State, reason string) {
			if cur == connection.StatePaused {
				zl.Warn().Str("reason", reason).Msg("reconnect attempts exhausted, paused")
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}
	defer func() {
		m.Shutdown()
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := q.Sync(sctx); err != nil {
			zl.Error().Err(err).Msg("persist outbound queue")
		}
		zl.Info().Int("unsent", m.QueueLen()).Msg("connection closed")
	}()

	b := bus.NewMemory(logger)
	b.On(syncer.EventConflict, func(_ context.Context, payload any) error {
		zl.Info().Interface("conflict", payload).Msg("kept local copy")
		return nil
	})
	b.On(syncer.EventNotification, func(_ context.Context, payload any) error {
		zl.Info().Interface("notification", payload).Msg("notification")
		return nil
	})
	b.On(syncer.EventServerError, func(_ context.Context, payload any) error {
		zl.Warn().Interface("error", payload).Msg("server error")
		return nil
	})

	s := syncer.New(m, b,
		syncer.WithStore(st),
		syncer.WithLogger(logger),
		syncer.WithSource(cfg.Source),
	)
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("start syncer: %w", err)
	}
	defer s.Stop()

	if cfg.WatchConfig && cfgFile != "" && cliconfig.FileExists(cfgFile) {
		w, err := configwatcher.New(configwatcher.DefaultConfig(cfgFile), func(context.Context) error {
			next := base
			if err := loadConfig(&next, cfgFile, changed); err != nil {
				return err
			}
			return m.UpdateConfig(next.ConnectionConfig())
		}, logger)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			zl.Warn().Err(err).Msg("config watcher not started")
		} else {
			defer func() {
				sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer scancel()
				_ = w.Shutdown(sctx)
			}()
		}
	}

	m.Connect()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	feedDone := make(chan struct{})
	if readStdin {
		go func() {
			defer close(feedDone)
			n, err := feedChanges(ctx, os.Stdin, b, logger)
			if err != nil && ctx.Err() == nil {
				zl.Error().Err(err).Msg("stdin feed stopped")
				return
			}
			zl.Info().Int("changes", n).Msg("stdin closed")
		}()
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			zl.Info().Msg("received signal, stopping...")
			return nil
		case <-ctx.Done():
			return nil
		case <-feedDone:
			// Keep running so queued changes still flush.
			feedDone = nil
		case <-ticker.C:
			stats := m.Stats()
			zl.Debug().
				Str("state", stats.State.String()).
				Int("queued", stats.QueueLength).
				Int("queueCapacity", stats.QueueCapacity).
				Int("pendingAcks", stats.PendingAcks).
				Dur("latency", stats.Latency).
				Msg("stats")
		}
	}
}
