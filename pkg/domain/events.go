package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter  EventType = "node_enter"
	EventNodeLeave  EventType = "node_leave"
	EventBranch     EventType = "branch"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
	EventRunEnd     EventType = "run_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	Node string `json:"node"`
	Kind string `json:"kind"`
	Step int    `json:"step"`
	// Duration and Changed are set on leave.
	Duration time.Duration `json:"duration,omitempty"`
	Changed  []string      `json:"changed,omitempty"`
	Err      error         `json:"-"`
}

// BranchEvent records a conditional routing decision.
type BranchEvent struct {
	EventBase
	Node   string `json:"node"`
	Label  string `json:"label"`
	Target string `json:"target"`
}

// ToolEvent represents a capability invocation inside a tool node.
type ToolEvent struct {
	EventBase
	Node     string        `json:"node"`
	ToolName string        `json:"tool_name"`
	CallID   string        `json:"call_id"`
	Input    any           `json:"input,omitempty"`
	Output   any           `json:"output,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// RunEvent is emitted once when a run reaches Done or Failed.
type RunEvent struct {
	EventBase
	Status ExecutionStatus `json:"status"`
	Steps  int             `json:"steps"`
	Err    error           `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Every hook is optional.
type LifecycleHooks struct {
	OnNodeEnter  func(context.Context, *NodeEvent)
	OnNodeLeave  func(context.Context, *NodeEvent)
	OnBranch     func(context.Context, *BranchEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnRunEnd     func(context.Context, *RunEvent)
}

// Merge returns hooks that invoke h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:  chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:  chain(h.OnNodeLeave, other.OnNodeLeave),
		OnBranch:     chain(h.OnBranch, other.OnBranch),
		OnToolCall:   chain(h.OnToolCall, other.OnToolCall),
		OnToolReturn: chain(h.OnToolReturn, other.OnToolReturn),
		OnRunEnd:     chain(h.OnRunEnd, other.OnRunEnd),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}

type ctxHooksKey struct{}

type runScope struct {
	hooks LifecycleHooks
	runID string
	node  string
}

// WithRunScope attaches the hooks and identity of the current run and node to ctx,
// so node implementations (like tool dispatch) can emit events.
func WithRunScope(ctx context.Context, hooks LifecycleHooks, runID, node string) context.Context {
	return context.WithValue(ctx, ctxHooksKey{}, &runScope{hooks: hooks, runID: runID, node: node})
}

// EmitToolCall reports a capability invocation to the hooks of the current run, if any.
func EmitToolCall(ctx context.Context, e *ToolEvent) {
	scope, ok := ctx.Value(ctxHooksKey{}).(*runScope)
	if !ok || scope.hooks.OnToolCall == nil {
		return
	}
	e.Type, e.RunID, e.Node = EventToolCall, scope.runID, scope.node
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	scope.hooks.OnToolCall(ctx, e)
}

// EmitToolReturn reports a capability result to the hooks of the current run, if any.
func EmitToolReturn(ctx context.Context, e *ToolEvent) {
	scope, ok := ctx.Value(ctxHooksKey{}).(*runScope)
	if !ok || scope.hooks.OnToolReturn == nil {
		return
	}
	e.Type, e.RunID, e.Node = EventToolReturn, scope.runID, scope.node
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	scope.hooks.OnToolReturn(ctx, e)
}

// RunIDFromContext returns the ID of the run executing the current node.
func RunIDFromContext(ctx context.Context) (string, bool) {
	scope, ok := ctx.Value(ctxHooksKey{}).(*runScope)
	if !ok {
		return "", false
	}
	return scope.runID, true
}
