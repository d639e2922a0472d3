package domain

import (
	"reflect"
	"slices"
)

// StateDiff represents the fields changed by one step.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// Fields contains only changed values, keyed by field name.
	Fields map[string]any `json:"fields,omitempty"`

	// Appended contains, per append field, only the new messages.
	Appended map[string][]Message `json:"appended,omitempty"`
}

// Diff calculates the difference between before and after.
// Append fields are reported by their new tail; everything else by its new value.
// It returns nil when nothing changed.
func Diff(before, after State) *StateDiff {
	if after.schema == nil {
		return nil
	}
	diff := &StateDiff{}
	for _, f := range after.schema.fields {
		newVal := after.values[f.Name]
		var oldVal any
		if before.schema != nil {
			oldVal = before.values[f.Name]
		}
		if valueEqual(oldVal, newVal) {
			continue
		}
		if f.Policy == Append {
			tail := appendedTail(asMessages(oldVal), asMessages(newVal))
			if tail != nil {
				if diff.Appended == nil {
					diff.Appended = make(map[string][]Message)
				}
				diff.Appended[f.Name] = tail
				continue
			}
		}
		if diff.Fields == nil {
			diff.Fields = make(map[string]any)
		}
		diff.Fields[f.Name] = newVal
	}
	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// appendedTail returns the new suffix when after extends before, else nil.
func appendedTail(before, after []Message) []Message {
	if len(after) <= len(before) {
		return nil
	}
	if !slices.EqualFunc(before, after[:len(before)], func(a, b Message) bool {
		return reflect.DeepEqual(a, b)
	}) {
		return nil
	}
	return cloneMessages(after[len(before):])
}

// Changed returns the names of every changed field, sorted.
func (d *StateDiff) Changed() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.Fields)+len(d.Appended))
	for k := range d.Fields {
		names = append(names, k)
	}
	for k := range d.Appended {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// IsEmpty checks if the diff contains any changes.
func (d *StateDiff) IsEmpty() bool {
	return d == nil || (len(d.Fields) == 0 && len(d.Appended) == 0)
}

func valueEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
