//go:build integration

package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/syncwire/pkg/store"
)

func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("SYNCWIRE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SYNCWIRE_TEST_POSTGRES_DSN not set")
	}
	table := fmt.Sprintf("syncwire_kv_test_%d", time.Now().UnixNano())
	s, err := New(dsn, table)
	require.NoError(t, err)
	t.Cleanup(func() {
		if s.db != nil {
			_, _ = s.db.Exec("DROP TABLE IF EXISTS " + quoteIdentifier(table))
		}
		_ = s.Close()
	})

	ctx := context.Background()
	_, err = s.Get(ctx, "outbound", "queue")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, s.Set(ctx, "outbound", "queue", []byte("one")))
	require.NoError(t, s.Set(ctx, "outbound", "queue", []byte("two")))

	got, err := s.Get(ctx, "outbound", "queue")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}
