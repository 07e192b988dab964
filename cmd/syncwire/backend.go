package main

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/firestore"

	"github.com/bft-labs/syncwire/internal/cliconfig"
	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/store"
	"github.com/bft-labs/syncwire/pkg/store/firestorestore"
	"github.com/bft-labs/syncwire/pkg/store/pgstore"
	"github.com/bft-labs/syncwire/pkg/store/redisstore"
	"github.com/bft-labs/syncwire/pkg/transport"
	"github.com/bft-labs/syncwire/pkg/transport/mqtt"
	"github.com/bft-labs/syncwire/pkg/transport/websocket"
)

const storePrefix = "syncwire"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore builds the configured key/value backend. The returned closer
// releases any client the store owns.
func openStore(ctx context.Context, cfg cliconfig.Config, logger log.Logger) (store.Store, io.Closer, error) {
	switch cfg.Store {
	case cliconfig.StoreMemory:
		return store.NewMemoryStore(), nopCloser{}, nil
	case cliconfig.StoreFile:
		return store.NewFileStore(cfg.StateDir), nopCloser{}, nil
	case cliconfig.StoreRedis:
		st, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   storePrefix,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case cliconfig.StorePostgres:
		st, err := pgstore.New(cfg.PostgresDSN, "")
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case cliconfig.StoreFirestore:
		client, err := firestore.NewClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		st, err := firestorestore.New(client, storePrefix, logger)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return st, client, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func newDialer(cfg cliconfig.Config, logger log.Logger) (transport.Dialer, error) {
	switch cfg.Transport {
	case cliconfig.TransportWebSocket:
		return &websocket.Dialer{}, nil
	case cliconfig.TransportMQTT:
		d, err := mqtt.NewDialer(mqtt.Config{
			ClientID:       cfg.MQTTClientID,
			Username:       cfg.MQTTUsername,
			Password:       cfg.MQTTPassword,
			PublishTopic:   cfg.MQTTPublishTopic,
			SubscribeTopic: cfg.MQTTSubscribeTopic,
			QoS:            byte(cfg.MQTTQoS),
		}, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}
