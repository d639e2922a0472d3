package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Every typed error below matches exactly one of them with errors.Is.
var (
	// ErrBuild marks errors surfaced by graph construction and Compile.
	ErrBuild = errors.New("graph build error")
	// ErrRun marks errors that terminate a single run.
	ErrRun = errors.New("graph run error")
)

// ErrNoEntry is returned by Compile when no edge leaves Start.
var ErrNoEntry = fmt.Errorf("%w: no edge from %s designates an entry node", ErrBuild, Start)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// SchemaError reports an invalid field declaration.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return "schema: " + e.Reason
	}
	return fmt.Sprintf("schema: field %q %s", e.Field, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrBuild }

// DuplicateNodeError is returned when a node name is registered twice.
type DuplicateNodeError struct {
	Node string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %q already registered", e.Node)
}

func (e *DuplicateNodeError) Is(target error) bool { return target == ErrBuild }

// UnknownNodeError is returned when an edge references a node missing from the registry.
type UnknownNodeError struct {
	Node string
	// Referrer is the edge endpoint that holds the dangling reference.
	Referrer string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("edge from %q references unknown node %q", e.Referrer, e.Node)
}

func (e *UnknownNodeError) Is(target error) bool { return target == ErrBuild }

// UnreachableNodeError reports a registered node that no path from Start reaches.
type UnreachableNodeError struct {
	Node string
}

func (e *UnreachableNodeError) Error() string {
	return fmt.Sprintf("node %q is unreachable from %s", e.Node, Start)
}

func (e *UnreachableNodeError) Is(target error) bool { return target == ErrBuild }

// GraphFrozenError is returned by builder methods called after Compile.
type GraphFrozenError struct {
	Op string
}

func (e *GraphFrozenError) Error() string {
	return fmt.Sprintf("%s: graph is frozen after compile", e.Op)
}

func (e *GraphFrozenError) Is(target error) bool { return target == ErrBuild }

// AmbiguousRouteError reports a node with more than one outgoing route.
type AmbiguousRouteError struct {
	Node   string
	Reason string
}

func (e *AmbiguousRouteError) Error() string {
	return fmt.Sprintf("node %q has ambiguous routing: %s", e.Node, e.Reason)
}

func (e *AmbiguousRouteError) Is(target error) bool { return target == ErrBuild }

// MissingBranchTargetError reports branch labels without a target in the mapping.
type MissingBranchTargetError struct {
	Node   string
	Labels []string
}

func (e *MissingBranchTargetError) Error() string {
	return fmt.Sprintf("branch on %q has no target for labels [%s]", e.Node, strings.Join(e.Labels, ", "))
}

func (e *MissingBranchTargetError) Is(target error) bool { return target == ErrBuild }

// MissingRouteError reports a node with no outgoing edge at all.
type MissingRouteError struct {
	Node string
}

func (e *MissingRouteError) Error() string {
	return fmt.Sprintf("node %q has no outgoing edge", e.Node)
}

func (e *MissingRouteError) Is(target error) bool { return target == ErrBuild }

// NoTerminalPathError is returned when End cannot be reached from Start.
type NoTerminalPathError struct {
	Entry string
}

func (e *NoTerminalPathError) Error() string {
	return fmt.Sprintf("no path from entry node %q reaches %s", e.Entry, End)
}

func (e *NoTerminalPathError) Is(target error) bool { return target == ErrBuild }

// NodeExecutionError wraps a failure raised by a node or branch function.
type NodeExecutionError struct {
	Node string
	// Phase is "node" or "branch".
	Phase string
	Err   error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("%s %q failed: %v", e.Phase, e.Node, e.Err)
}

func (e *NodeExecutionError) Unwrap() error { return e.Err }

func (e *NodeExecutionError) Is(target error) bool { return target == ErrRun }

// UnknownBranchLabelError is returned when a branch produces a label with no target.
type UnknownBranchLabelError struct {
	Node  string
	Label string
}

func (e *UnknownBranchLabelError) Error() string {
	return fmt.Sprintf("branch on %q produced unknown label %q", e.Node, e.Label)
}

func (e *UnknownBranchLabelError) Is(target error) bool { return target == ErrRun }

// MergeShapeMismatchError reports a partial value that does not fit the field declaration.
type MergeShapeMismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e *MergeShapeMismatchError) Error() string {
	return fmt.Sprintf("field %q expects %s, got %s", e.Field, e.Want, e.Got)
}

func (e *MergeShapeMismatchError) Is(target error) bool { return target == ErrRun }

// UndeclaredFieldError is returned when reading or writing a field missing from the schema.
type UndeclaredFieldError struct {
	Field string
}

func (e *UndeclaredFieldError) Error() string {
	return fmt.Sprintf("field %q is not declared", e.Field)
}

func (e *UndeclaredFieldError) Is(target error) bool { return target == ErrRun }

// MaxStepsExceededError is returned when a run exceeds its configured step budget.
type MaxStepsExceededError struct {
	Limit int
	Node  string
}

func (e *MaxStepsExceededError) Error() string {
	return fmt.Sprintf("exceeded maximum of %d steps (next node %q)", e.Limit, e.Node)
}

func (e *MaxStepsExceededError) Is(target error) bool { return target == ErrRun }
