package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/syncwire/internal/cliconfig"
	"github.com/bft-labs/syncwire/pkg/store"
	"github.com/bft-labs/syncwire/pkg/transport/mqtt"
	"github.com/bft-labs/syncwire/pkg/transport/websocket"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	cfg := cliconfig.DefaultConfig()
	cfg.Store = cliconfig.StoreMemory
	st, closer, err := openStore(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, st)
	assert.NoError(t, closer.Close())

	cfg.Store = cliconfig.StoreFile
	cfg.StateDir = t.TempDir()
	st, _, err = openStore(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "sync", "marker", []byte("7")))
	v, err := st.Get(ctx, "sync", "marker")
	require.NoError(t, err)
	assert.Equal(t, "7", string(v))

	cfg.Store = "floppy"
	_, _, err = openStore(ctx, cfg, nil)
	assert.Error(t, err)
}

func TestNewDialer(t *testing.T) {
	cfg := cliconfig.DefaultConfig()
	d, err := newDialer(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &websocket.Dialer{}, d)

	cfg.Transport = cliconfig.TransportMQTT
	cfg.MQTTClientID = "register-1"
	d, err = newDialer(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &mqtt.Dialer{}, d)

	cfg.Transport = "smoke"
	_, err = newDialer(cfg, nil)
	assert.Error(t, err)
}
