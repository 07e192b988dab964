package syncer

import (
	"encoding/json"

	"github.com/bft-labs/syncwire/pkg/envelope"
)

// Kind selects the conflict resolution rule for an entity.
type Kind string

const (
	KindOrder        Kind = "order"
	KindInventory    Kind = "inventory"
	KindStaff        Kind = "staff"
	KindKitchen      Kind = "kitchen"
	KindNotification Kind = "notification"
)

// Station values for order records.
const (
	StationKitchen = "kitchen"
	StationPOS     = "pos"
)

// Record is the sync layer's view of one entity copy. Business fields ride
// along untouched in Data.
type Record struct {
	Kind      Kind   `json:"kind"`
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`

	// Station is where an order update originated.
	Station string `json:"station,omitempty"`

	// Automatic marks system-generated inventory updates.
	Automatic bool    `json:"automatic,omitempty"`
	Field     string  `json:"field,omitempty"`
	Value     float64 `json:"value,omitempty"`

	Data json.RawMessage `json:"data,omitempty"`
}

// Action is what happened to an entity locally.
type Action string

const (
	ActionCreated       Action = "created"
	ActionUpdated       Action = "updated"
	ActionStatusChanged Action = "status_changed"
	ActionClock         Action = "clock"
)

// Origin tells whether a change started locally or came off the wire.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// EntityChange is the payload of EventEntityChanged.
type EntityChange struct {
	Action Action `json:"action"`
	Record Record `json:"record"`
	Origin Origin `json:"origin"`
}

// envelopeType maps a local change to its wire type.
func envelopeType(c EntityChange) (envelope.Type, bool) {
	switch c.Record.Kind {
	case KindOrder:
		switch c.Action {
		case ActionCreated:
			return envelope.TypeOrderCreated, true
		case ActionStatusChanged:
			return envelope.TypeOrderStatusChanged, true
		default:
			return envelope.TypeOrderUpdated, true
		}
	case KindInventory:
		return envelope.TypeInventoryUpdated, true
	case KindStaff:
		return envelope.TypeStaffClockAction, true
	case KindKitchen:
		return envelope.TypeKitchenUpdate, true
	case KindNotification:
		return envelope.TypeNotification, true
	}
	return "", false
}

// kindOf maps an inbound wire type to the entity kind it carries.
func kindOf(t envelope.Type) (Kind, Action) {
	switch t {
	case envelope.TypeOrderCreated:
		return KindOrder, ActionCreated
	case envelope.TypeOrderUpdated:
		return KindOrder, ActionUpdated
	case envelope.TypeOrderStatusChanged:
		return KindOrder, ActionStatusChanged
	case envelope.TypeInventoryUpdated:
		return KindInventory, ActionUpdated
	case envelope.TypeStaffClockAction:
		return KindStaff, ActionClock
	case envelope.TypeKitchenUpdate:
		return KindKitchen, ActionUpdated
	}
	return "", ""
}

func priorityFor(k Kind) envelope.Priority {
	switch k {
	case KindOrder, KindKitchen:
		return envelope.PriorityHigh
	case KindNotification:
		return envelope.PriorityLow
	default:
		return envelope.PriorityMedium
	}
}
