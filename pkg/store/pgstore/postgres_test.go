package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/syncwire/pkg/store"
)

func TestNew_RequiresDSN(t *testing.T) {
	_, err := New("  ", "")
	assert.True(t, errors.Is(err, ErrEmptyDSN))

	s, err := New("postgres://localhost/db", "")
	require.NoError(t, err)
	assert.Equal(t, defaultTableName, s.tableName)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"syncwire_kv"`, quoteIdentifier("syncwire_kv"))
	assert.Equal(t, `"we""ird"`, quoteIdentifier(`we"ird`))
}

func TestStore_OpenFailureIsSticky(t *testing.T) {
	s, err := New("postgres://localhost/db", "")
	require.NoError(t, err)
	calls := 0
	openErr := errors.New("driver unavailable")
	s.openDB = func(driverName, dsn string) (*sql.DB, error) {
		calls++
		return nil, openErr
	}

	_, err = s.Get(context.Background(), "ns", "k")
	assert.ErrorIs(t, err, openErr)
	err = s.Set(context.Background(), "ns", "k", []byte("v"))
	assert.ErrorIs(t, err, openErr)
	assert.Equal(t, 1, calls)
}

func TestStore_ValidatesKeysBeforeConnecting(t *testing.T) {
	s, err := New("postgres://localhost/db", "")
	require.NoError(t, err)
	s.openDB = func(driverName, dsn string) (*sql.DB, error) {
		t.Fatal("must not open the database for an invalid key")
		return nil, nil
	}
	_, err = s.Get(context.Background(), "ns", "")
	assert.ErrorIs(t, err, store.ErrInvalidKey)
}
