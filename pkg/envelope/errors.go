package envelope

import "errors"

var (
	// ErrUnknownType is returned when a type outside the closed enumeration is used.
	ErrUnknownType = errors.New("envelope: unknown type")

	// ErrMalformed wraps every inbound frame rejection.
	ErrMalformed = errors.New("envelope: malformed frame")

	// ErrEmptyData is returned by Decode when the envelope carries no payload.
	ErrEmptyData = errors.New("envelope: empty data")

	// ErrInvalidJSON is returned when raw payload bytes are not valid JSON.
	ErrInvalidJSON = errors.New("envelope: payload is not valid json")
)
