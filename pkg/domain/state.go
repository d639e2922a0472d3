package domain

import (
	"encoding/json"
	"fmt"
	"maps"
)

// State is an immutable snapshot of the declared fields of a run.
// The zero value is unusable; build states with NewState or Merge.
type State struct {
	schema *Schema
	values map[string]any
}

// NewState creates a fresh state: every declared default, then initial merged over it.
func NewState(schema *Schema, initial map[string]any) (State, error) {
	if schema == nil {
		return State{}, fmt.Errorf("nil schema")
	}
	s := State{schema: schema, values: make(map[string]any, len(schema.fields))}
	for _, f := range schema.fields {
		if f.Kind == KindMessages {
			s.values[f.Name] = cloneMessages(asMessages(f.Default))
			continue
		}
		s.values[f.Name] = f.Default
	}
	return Merge(s, Partial(initial))
}

func asMessages(v any) []Message {
	m, _ := v.([]Message)
	return m
}

// Schema returns the declarations the state was built from.
func (s State) Schema() *Schema {
	return s.schema
}

// Get returns the value of a declared field.
func (s State) Get(name string) (any, error) {
	if s.schema == nil || !s.schema.Has(name) {
		return nil, &UndeclaredFieldError{Field: name}
	}
	v := s.values[name]
	if m, ok := v.([]Message); ok {
		return cloneMessages(m), nil
	}
	return v, nil
}

// Number returns a numeric field.
func (s State) Number(name string) (float64, error) {
	v, err := s.typed(name, KindNumber)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// String returns a string or enum field.
func (s State) String(name string) (string, error) {
	v, err := s.typed(name, KindString, KindEnum)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Messages returns a copy of a message field.
func (s State) Messages(name string) ([]Message, error) {
	v, err := s.typed(name, KindMessages)
	if err != nil {
		return nil, err
	}
	return cloneMessages(v.([]Message)), nil
}

// LastMessage returns the newest entry of a message field; ok is false when it is empty.
func (s State) LastMessage(name string) (msg Message, ok bool, err error) {
	v, err := s.typed(name, KindMessages)
	if err != nil {
		return Message{}, false, err
	}
	msgs := v.([]Message)
	if len(msgs) == 0 {
		return Message{}, false, nil
	}
	return msgs[len(msgs)-1].Clone(), true, nil
}

func (s State) typed(name string, kinds ...FieldKind) (any, error) {
	if s.schema == nil {
		return nil, &UndeclaredFieldError{Field: name}
	}
	f, ok := s.schema.Field(name)
	if !ok {
		return nil, &UndeclaredFieldError{Field: name}
	}
	for _, k := range kinds {
		if f.Kind == k {
			return s.values[name], nil
		}
	}
	return nil, fmt.Errorf("field %q is %s, not %v", name, f.Kind, kinds)
}

// Values returns a copy of every field value keyed by name.
func (s State) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		if m, ok := v.([]Message); ok {
			out[k] = cloneMessages(m)
			continue
		}
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the field values as a flat object.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.values)
}

// Equal reports whether both states hold the same values under the same schema.
func (s State) Equal(o State) bool {
	if s.schema != o.schema || len(s.values) != len(o.values) {
		return false
	}
	return maps.EqualFunc(s.values, o.values, valueEqual)
}

func (s State) clone() State {
	return State{schema: s.schema, values: maps.Clone(s.values)}
}
