// Package envelope defines the wire unit exchanged between a client and the
// sync server: a typed, timestamped, JSON encoded message with delivery metadata.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type is the closed set of envelope kinds understood on the wire.
type Type string

const (
	TypeOrderCreated       Type = "ORDER_CREATED"
	TypeOrderUpdated       Type = "ORDER_UPDATED"
	TypeOrderStatusChanged Type = "ORDER_STATUS_CHANGED"
	TypeInventoryUpdated   Type = "INVENTORY_UPDATED"
	TypeStaffClockAction   Type = "STAFF_CLOCK_ACTION"
	TypeKitchenUpdate      Type = "KITCHEN_UPDATE"
	TypeNotification       Type = "NOTIFICATION"
	TypeHeartbeat          Type = "HEARTBEAT"
	TypeSyncRequest        Type = "SYNC_REQUEST"

	// Lifecycle pseudo-types. They are produced locally when the connection
	// state changes and never transmitted.
	TypeClientConnected    Type = "CLIENT_CONNECTED"
	TypeClientDisconnected Type = "CLIENT_DISCONNECTED"

	TypeError Type = "ERROR"
	TypeAck   Type = "ACK"
)

var allTypes = []Type{
	TypeOrderCreated,
	TypeOrderUpdated,
	TypeOrderStatusChanged,
	TypeInventoryUpdated,
	TypeStaffClockAction,
	TypeKitchenUpdate,
	TypeNotification,
	TypeHeartbeat,
	TypeSyncRequest,
	TypeClientConnected,
	TypeClientDisconnected,
	TypeError,
	TypeAck,
}

// Types returns every known envelope type.
func Types() []Type {
	return append([]Type(nil), allTypes...)
}

// Valid reports whether t belongs to the closed enumeration.
func (t Type) Valid() bool {
	for _, known := range allTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Local reports whether t is a lifecycle pseudo-type that never goes on the wire.
func (t Type) Local() bool {
	return t == TypeClientConnected || t == TypeClientDisconnected
}

// Priority is advisory metadata. It never reorders delivery.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// DefaultSource labels envelopes created without an explicit source.
const DefaultSource = "client"

// Envelope is one discrete wire message. Treat values as immutable; the With*
// methods return modified copies.
type Envelope struct {
	ID           string          `json:"id" msgpack:"id"`
	Type         Type            `json:"type" msgpack:"type"`
	Timestamp    int64           `json:"timestamp" msgpack:"timestamp"`
	Data         json.RawMessage `json:"data,omitempty" msgpack:"data,omitempty"`
	Source       string          `json:"source,omitempty" msgpack:"source,omitempty"`
	Priority     Priority        `json:"priority,omitempty" msgpack:"priority,omitempty"`
	RequiresAck  bool            `json:"requiresAck,omitempty" msgpack:"requiresAck,omitempty"`
	AckTimeoutMs int64           `json:"ackTimeoutMs,omitempty" msgpack:"ackTimeoutMs,omitempty"`
}

// Option customizes an envelope built by New.
type Option func(*Envelope)

// WithSource sets the originating endpoint label.
func WithSource(source string) Option {
	return func(e *Envelope) { e.Source = source }
}

// WithPriority sets the advisory priority.
func WithPriority(p Priority) Option {
	return func(e *Envelope) { e.Priority = p }
}

// WithAckTimeout marks the envelope as requiring acknowledgment within timeout.
func WithAckTimeout(timeout time.Duration) Option {
	return func(e *Envelope) {
		e.RequiresAck = true
		e.AckTimeoutMs = timeout.Milliseconds()
	}
}

// WithTimestamp overrides the generation time.
func WithTimestamp(ts time.Time) Option {
	return func(e *Envelope) { e.Timestamp = ts.UnixMilli() }
}

// New builds an envelope with a fresh id and the current time. data is
// marshaled to JSON; a nil data leaves the payload empty.
func New(t Type, data any, opts ...Option) (Envelope, error) {
	if !t.Valid() {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	e := Envelope{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UnixMilli(),
		Source:    DefaultSource,
		Priority:  PriorityMedium,
	}
	if data != nil {
		raw, err := marshalData(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s data: %w", t, err)
		}
		e.Data = raw
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e, nil
}

// MustNew is New for payloads that cannot fail to marshal.
func MustNew(t Type, data any, opts ...Option) Envelope {
	e, err := New(t, data, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// WithAck returns a copy of e that requires acknowledgment within timeout.
func (e Envelope) WithAck(timeout time.Duration) Envelope {
	e.RequiresAck = true
	e.AckTimeoutMs = timeout.Milliseconds()
	return e
}

// AckTimeout returns the per-envelope acknowledgment timeout, or zero.
func (e Envelope) AckTimeout() time.Duration {
	if !e.RequiresAck || e.AckTimeoutMs <= 0 {
		return 0
	}
	return time.Duration(e.AckTimeoutMs) * time.Millisecond
}

// Time returns the generation time.
func (e Envelope) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return ErrEmptyData
	}
	return json.Unmarshal(e.Data, v)
}

func marshalData(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, ErrInvalidJSON
		}
		return json.RawMessage(v), nil
	default:
		return json.Marshal(v)
	}
}
