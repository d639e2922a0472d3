package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Partial is the set of fields a node changed. Absent fields are left untouched.
type Partial map[string]any

// Merge folds partial into current and returns the new state. current is not modified.
// Replace fields overwrite, Append fields concatenate in order. Undeclared keys
// and values of the wrong shape fail the merge.
func Merge(current State, partial Partial) (State, error) {
	if current.schema == nil {
		return State{}, fmt.Errorf("merge into zero state")
	}
	if len(partial) == 0 {
		return current, nil
	}

	next := current.clone()
	// Iterate in schema order so the first reported error is stable.
	for _, name := range sortedKeys(current.schema, partial) {
		f, ok := current.schema.Field(name)
		if !ok {
			return State{}, &UndeclaredFieldError{Field: name}
		}
		v, err := coerce(f, partial[name])
		if err != nil {
			return State{}, err
		}
		if f.Policy == Append {
			prev, _ := next.values[name].([]Message)
			next.values[name] = append(slices.Clip(prev), v.([]Message)...)
			continue
		}
		next.values[name] = v
	}
	return next, nil
}

// sortedKeys returns declared keys in schema order followed by undeclared ones.
func sortedKeys(s *Schema, p Partial) []string {
	keys := make([]string, 0, len(p))
	for _, name := range s.Names() {
		if _, ok := p[name]; ok {
			keys = append(keys, name)
		}
	}
	var extra []string
	for k := range p {
		if !s.Has(k) {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	return append(keys, extra...)
}

// coerce checks v against the field declaration and normalizes it.
// A nil value yields the zero value of the field kind.
func coerce(f Field, v any) (any, error) {
	switch f.Kind {
	case KindNumber:
		if v == nil {
			return float64(0), nil
		}
		n, ok := toFloat(v)
		if !ok {
			return nil, mismatch(f, v)
		}
		return n, nil
	case KindString:
		if v == nil {
			return "", nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(f, v)
		}
		return s, nil
	case KindEnum:
		if v == nil {
			return f.Values[0], nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(f, v)
		}
		if !slices.Contains(f.Values, s) {
			return nil, &MergeShapeMismatchError{Field: f.Name, Want: fmt.Sprintf("one of %v", f.Values), Got: fmt.Sprintf("%q", s)}
		}
		return s, nil
	case KindMessages:
		switch m := v.(type) {
		case nil:
			return []Message(nil), nil
		case []Message:
			return cloneMessages(m), nil
		default:
			// A single Message is a scalar: append fields only take sequences.
			return nil, mismatch(f, v)
		}
	}
	return nil, mismatch(f, v)
}

func mismatch(f Field, v any) error {
	want := string(f.Kind)
	if f.Kind == KindMessages {
		want = "[]domain.Message"
	}
	return &MergeShapeMismatchError{Field: f.Name, Want: want, Got: fmt.Sprintf("%T", v)}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
