package domain

import (
	"fmt"
	"slices"
)

// FieldKind is the declared value type of a state field.
type FieldKind string

const (
	KindNumber   FieldKind = "number"
	KindString   FieldKind = "string"
	KindEnum     FieldKind = "enum"
	KindMessages FieldKind = "messages"
)

// MergePolicy decides how a partial update is folded into the running state.
type MergePolicy string

const (
	// Replace overwrites the previous value. Default for scalars and enums.
	Replace MergePolicy = "replace"
	// Append concatenates the partial's sequence after the existing one.
	Append MergePolicy = "append"
)

// Field declares one state field.
type Field struct {
	Name    string
	Kind    FieldKind
	Policy  MergePolicy
	Default any
	// Values lists the allowed values of an enum field.
	Values []string
}

// Number declares a numeric field (float64) with a default value.
func Number(name string, def float64) Field {
	return Field{Name: name, Kind: KindNumber, Default: def}
}

// String declares a text field with a default value.
func String(name, def string) Field {
	return Field{Name: name, Kind: KindString, Default: def}
}

// Enum declares a string field restricted to values. The default must be one of them.
// An empty def selects the first value.
func Enum(name, def string, values ...string) Field {
	f := Field{Name: name, Kind: KindEnum, Values: values}
	if def != "" {
		f.Default = def
	}
	return f
}

// Messages declares an append-only message sequence that starts empty.
func Messages(name string) Field {
	return Field{Name: name, Kind: KindMessages, Policy: Append}
}

// Schema is the ordered, immutable set of fields of a graph state.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema validates the field declarations and returns a Schema.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if f.Name == "" {
			return nil, &SchemaError{Reason: "field name is empty"}
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, &SchemaError{Field: f.Name, Reason: "declared twice"}
		}
		norm, err := normalizeField(f)
		if err != nil {
			return nil, err
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, norm)
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on invalid declarations.
// Intended for package-level graph definitions.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func normalizeField(f Field) (Field, error) {
	switch f.Kind {
	case KindNumber, KindString, KindEnum:
		if f.Policy == "" {
			f.Policy = Replace
		}
		if f.Policy != Replace {
			return f, &SchemaError{Field: f.Name, Reason: fmt.Sprintf("policy %q is not valid for %s fields", f.Policy, f.Kind)}
		}
	case KindMessages:
		if f.Policy == "" {
			f.Policy = Append
		}
		if f.Policy != Append && f.Policy != Replace {
			return f, &SchemaError{Field: f.Name, Reason: fmt.Sprintf("unknown policy %q", f.Policy)}
		}
	default:
		return f, &SchemaError{Field: f.Name, Reason: fmt.Sprintf("unknown kind %q", f.Kind)}
	}

	if f.Kind == KindEnum && len(f.Values) == 0 {
		return f, &SchemaError{Field: f.Name, Reason: "enum declares no values"}
	}
	f.Values = slices.Clone(f.Values)

	def, err := coerce(f, f.Default)
	if err != nil {
		return f, &SchemaError{Field: f.Name, Reason: "invalid default: " + err.Error()}
	}
	f.Default = def
	return f, nil
}

// Field returns the declaration of name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether name is declared.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Fields returns the declarations in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}
