package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/syncwire/pkg/bus"
	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/syncer"
)

func TestFeedChanges(t *testing.T) {
	b := bus.NewMemory(nil)
	var got []syncer.EntityChange
	b.On(syncer.EventEntityChanged, func(_ context.Context, payload any) error {
		got = append(got, payload.(syncer.EntityChange))
		return nil
	})

	input := strings.Join([]string{
		`{"action":"created","record":{"kind":"order","id":"o-1","timestamp":1}}`,
		``,
		`not json`,
		`{"action":"updated","record":{"kind":"inventory","id":"i-1","timestamp":2,"field":"qty","value":4},"origin":"remote"}`,
	}, "\n")

	n, err := feedChanges(context.Background(), strings.NewReader(input), b, log.NewNoopLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, got, 2)
	assert.Equal(t, "o-1", got[0].Record.ID)
	assert.Equal(t, syncer.ActionCreated, got[0].Action)
	assert.Equal(t, syncer.OriginLocal, got[1].Origin, "stdin changes are always local")
	assert.Equal(t, 4.0, got[1].Record.Value)
}

func TestFeedChanges_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := feedChanges(ctx, strings.NewReader(`{"action":"created","record":{"kind":"order","id":"o-1"}}`), bus.NewMemory(nil), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
