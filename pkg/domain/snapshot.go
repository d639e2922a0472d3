package domain

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Snapshot is the persisted form of a state, used by stores and sessions.
type Snapshot struct {
	ID        string         `json:"id"`
	Graph     string         `json:"graph"`
	Values    map[string]any `json:"values"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewSnapshot captures the values of s.
func NewSnapshot(id, graph string, s State) *Snapshot {
	return &Snapshot{
		ID:        id,
		Graph:     graph,
		Values:    s.Values(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Restore rebuilds a state from the snapshot values under schema.
// Values that went through JSON (messages as maps, numbers as float64/json.Number)
// are decoded back into their declared types. Unknown keys are dropped.
func (s *Snapshot) Restore(schema *Schema) (State, error) {
	known := make(map[string]any, len(s.Values))
	for name, raw := range s.Values {
		if schema.Has(name) {
			known[name] = raw
		}
	}
	initial, err := DecodeValues(schema, known)
	if err != nil {
		return State{}, fmt.Errorf("restore: %w", err)
	}
	return NewState(schema, initial)
}

// DecodeValues converts loosely typed values, such as a decoded JSON request,
// into the Go types the schema declares. Undeclared keys are rejected.
func DecodeValues(schema *Schema, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for name, v := range raw {
		f, ok := schema.Field(name)
		if !ok {
			return nil, &UndeclaredFieldError{Field: name}
		}
		if f.Kind != KindMessages {
			out[name] = v
			continue
		}
		if _, ok := v.([]Message); ok || v == nil {
			out[name] = v
			continue
		}
		var msgs []Message
		if err := decodeMessages(v, &msgs); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = msgs
	}
	return out, nil
}

func decodeMessages(raw any, out *[]Message) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
