package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	schema := MustSchema(
		Number("a", 0),
		String("b", "old"),
		Messages("messages"),
	)
	base, err := NewState(schema, map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("NewState() failed: %v", err)
	}
	withMsg, _ := Merge(base, Partial{"messages": []Message{UserMessage("hi")}})

	tests := []struct {
		name     string
		partial  Partial
		from     State
		wantDiff *StateDiff // nil means we expect no diff
	}{
		{
			name:     "No Changes",
			from:     base,
			partial:  Partial{"a": 1},
			wantDiff: nil,
		},
		{
			name:    "Scalar Modified",
			from:    base,
			partial: Partial{"b": "new"},
			wantDiff: &StateDiff{
				Fields: map[string]any{"b": "new"},
			},
		},
		{
			name:    "Messages Appended",
			from:    withMsg,
			partial: Partial{"messages": []Message{AssistantMessage("hello")}},
			wantDiff: &StateDiff{
				Appended: map[string][]Message{"messages": {AssistantMessage("hello")}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			after, err := Merge(tt.from, tt.partial)
			if err != nil {
				t.Fatalf("Merge() failed: %v", err)
			}
			got := Diff(tt.from, after)
			if tt.wantDiff == nil {
				if got != nil {
					t.Errorf("Diff() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Diff() = nil, want %v", tt.wantDiff)
			}
			if !reflect.DeepEqual(got.Fields, tt.wantDiff.Fields) {
				t.Errorf("Diff().Fields = %v, want %v", got.Fields, tt.wantDiff.Fields)
			}
			if !reflect.DeepEqual(got.Appended, tt.wantDiff.Appended) {
				t.Errorf("Diff().Appended = %v, want %v", got.Appended, tt.wantDiff.Appended)
			}
		})
	}
}

func TestDiffInitialLoad(t *testing.T) {
	schema := MustSchema(Number("a", 2))
	s, _ := NewState(schema, nil)

	got := Diff(State{}, s)
	if got == nil {
		t.Fatal("Diff() = nil, want every field")
	}
	if got.Fields["a"] != float64(2) {
		t.Errorf("Diff().Fields[a] = %v, want 2", got.Fields["a"])
	}
	if changed := got.Changed(); len(changed) != 1 || changed[0] != "a" {
		t.Errorf("Changed() = %v, want [a]", changed)
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	schema := MustSchema(Number("a", 0), Messages("messages"))
	s1, _ := NewState(schema, nil)
	s2, _ := Merge(s1, Partial{"a": 3})

	diff := Diff(s1, s2)
	if diff == nil {
		t.Fatal("Expected diff, got nil")
	}
	bytes, _ := json.Marshal(diff)
	if strings.Contains(string(bytes), `"appended"`) {
		t.Errorf("JSON should not contain 'appended' when no messages changed, got: %s", string(bytes))
	}
	if !strings.Contains(string(bytes), `"a":3`) {
		t.Errorf("JSON should contain the changed field, got: %s", string(bytes))
	}
}
