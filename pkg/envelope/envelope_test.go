package envelope

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FillsDefaults(t *testing.T) {
	before := time.Now().UnixMilli()
	e, err := New(TypeOrderCreated, map[string]string{"id": "o-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, TypeOrderCreated, e.Type)
	assert.GreaterOrEqual(t, e.Timestamp, before)
	assert.Equal(t, DefaultSource, e.Source)
	assert.Equal(t, PriorityMedium, e.Priority)
	assert.False(t, e.RequiresAck)
	assert.JSONEq(t, `{"id":"o-1"}`, string(e.Data))
}

func TestNew_RejectsUnknownType(t *testing.T) {
	_, err := New(Type("BOGUS"), nil)
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestNew_UniqueIDs(t *testing.T) {
	a := MustNew(TypeHeartbeat, nil)
	b := MustNew(TypeHeartbeat, nil)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestWithAck_ReturnsCopy(t *testing.T) {
	e := MustNew(TypeOrderUpdated, nil)
	acked := e.WithAck(2 * time.Second)

	assert.False(t, e.RequiresAck, "original must stay untouched")
	assert.True(t, acked.RequiresAck)
	assert.Equal(t, 2*time.Second, acked.AckTimeout())
	assert.Equal(t, e.ID, acked.ID)
}

func TestParse_RoundTripsWireFrame(t *testing.T) {
	e := MustNew(TypeInventoryUpdated, map[string]any{"stock": 4},
		WithPriority(PriorityCritical), WithSource("pos-1"), WithAckTimeout(time.Second))

	frame, err := Marshal(e)
	require.NoError(t, err)

	got, err := Parse(frame)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.Type, got.Type)
	assert.Equal(t, e.Timestamp, got.Timestamp)
	assert.Equal(t, PriorityCritical, got.Priority)
	assert.Equal(t, "pos-1", got.Source)
	assert.True(t, got.RequiresAck)
	assert.EqualValues(t, 1000, got.AckTimeoutMs)
	assert.JSONEq(t, string(e.Data), string(got.Data))
}

func TestParse_RejectsMalformedFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `{"id":`},
		{"not an object", `[1,2,3]`},
		{"missing id", `{"type":"HEARTBEAT","timestamp":1}`},
		{"empty id", `{"id":"","type":"HEARTBEAT","timestamp":1}`},
		{"unknown type", `{"id":"a","type":"NOPE","timestamp":1}`},
		{"fractional timestamp", `{"id":"a","type":"HEARTBEAT","timestamp":1.5}`},
		{"bad priority", `{"id":"a","type":"HEARTBEAT","timestamp":1,"priority":"urgent"}`},
		{"string requiresAck", `{"id":"a","type":"HEARTBEAT","timestamp":1,"requiresAck":"yes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.frame))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestAck_RoundTrip(t *testing.T) {
	a, err := NewAck("msg-1", map[string]bool{"stored": true})
	require.NoError(t, err)
	assert.Equal(t, TypeAck, a.Type)

	data, err := a.Ack()
	require.NoError(t, err)
	assert.Equal(t, "msg-1", data.MessageID)
	assert.JSONEq(t, `{"stored":true}`, string(data.Payload))
}

func TestAck_RejectsOtherTypes(t *testing.T) {
	e := MustNew(TypeHeartbeat, nil)
	_, err := e.Ack()
	assert.True(t, errors.Is(err, ErrMalformed))

	bad := MustNew(TypeAck, json.RawMessage(`{}`))
	_, err = bad.Ack()
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestDecode_EmptyData(t *testing.T) {
	var v map[string]any
	err := MustNew(TypeHeartbeat, nil).Decode(&v)
	assert.True(t, errors.Is(err, ErrEmptyData))
}

func TestTypeLocal(t *testing.T) {
	assert.True(t, TypeClientConnected.Local())
	assert.True(t, TypeClientDisconnected.Local())
	assert.False(t, TypeHeartbeat.Local())
	assert.Len(t, Types(), 13)
}
