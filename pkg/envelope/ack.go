package envelope

import (
	"encoding/json"
	"fmt"
)

// AckData is the payload of a TypeAck envelope.
type AckData struct {
	MessageID string          `json:"messageId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewAck builds the acknowledgment for the envelope with id messageID.
func NewAck(messageID string, payload any, opts ...Option) (Envelope, error) {
	data := AckData{MessageID: messageID}
	if payload != nil {
		raw, err := marshalData(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal ack payload: %w", err)
		}
		data.Payload = raw
	}
	return New(TypeAck, data, append([]Option{WithPriority(PriorityHigh)}, opts...)...)
}

// Ack extracts the acknowledgment payload of a TypeAck envelope.
func (e Envelope) Ack() (AckData, error) {
	if e.Type != TypeAck {
		return AckData{}, fmt.Errorf("%w: %s is not an ack", ErrMalformed, e.Type)
	}
	var data AckData
	if err := e.Decode(&data); err != nil {
		return AckData{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if data.MessageID == "" {
		return AckData{}, fmt.Errorf("%w: ack without messageId", ErrMalformed)
	}
	return data, nil
}
