package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "https://syncwire.dev/schema/envelope.json"

const schemaTemplate = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "type", "timestamp"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "type": {"enum": [%s]},
    "timestamp": {"type": "integer", "minimum": 0},
    "source": {"type": "string"},
    "priority": {"enum": ["low", "medium", "high", "critical"]},
    "requiresAck": {"type": "boolean"},
    "ackTimeoutMs": {"type": "integer", "minimum": 0}
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		quoted := make([]string, 0, len(allTypes))
		for _, t := range allTypes {
			quoted = append(quoted, fmt.Sprintf("%q", t))
		}
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(fmt.Sprintf(schemaTemplate, strings.Join(quoted, ", "))))
		if err != nil {
			schemaErr = fmt.Errorf("parse envelope schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add envelope schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Marshal encodes e as a wire frame.
func Marshal(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Parse decodes and validates an inbound wire frame. Every rejection wraps
// ErrMalformed.
func Parse(frame []byte) (Envelope, error) {
	sch, err := compiledSchema()
	if err != nil {
		return Envelope{}, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(frame))
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := sch.Validate(inst); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var e Envelope
	if err := json.Unmarshal(frame, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return e, nil
}
