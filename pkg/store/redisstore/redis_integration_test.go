//go:build integration

package redisstore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/store"
	"github.com/bft-labs/syncwire/pkg/store/redisstore"
)

func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("SYNCWIRE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SYNCWIRE_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	st, err := redisstore.New(ctx, redisstore.Config{Addr: addr, Prefix: "test-" + uuid.NewString()}, log.NewNoopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.Get(ctx, "outbound", "queue")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, st.Set(ctx, "outbound", "queue", []byte("snapshot")))
	got, err := st.Get(ctx, "outbound", "queue")
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot"), got)
}
