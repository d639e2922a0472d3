package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
)

// Dispatcher executes a named capability. *registry.Registry implements it.
type Dispatcher interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// ToolNode returns a node that answers every tool call of the last message in
// field, in order, with exactly one tool message each. Failures of a single
// call (unknown capability, error, panic) become an error-flagged message and
// never fail the node.
func ToolNode(field string, tools Dispatcher) graph.NodeFunc {
	return func(ctx context.Context, s domain.State) (domain.Partial, error) {
		last, ok, err := s.LastMessage(field)
		if err != nil {
			return nil, err
		}
		if !ok || !last.HasToolCalls() {
			return nil, nil
		}

		replies := make([]domain.Message, 0, len(last.ToolCalls))
		for _, call := range last.ToolCalls {
			replies = append(replies, dispatch(ctx, tools, call))
		}
		return domain.Partial{field: replies}, nil
	}
}

func dispatch(ctx context.Context, tools Dispatcher, call domain.ToolCall) domain.Message {
	domain.EmitToolCall(ctx, &domain.ToolEvent{
		ToolName: call.Name,
		CallID:   call.ID,
		Input:    call.Args,
	})
	start := time.Now()

	out, err := safeExecute(ctx, tools, call)

	var msg domain.Message
	if err != nil {
		msg = domain.ToolMessage(call, fmt.Sprintf("Error: %v", err), true)
	} else {
		msg = domain.ToolMessage(call, render(out), false)
	}

	domain.EmitToolReturn(ctx, &domain.ToolEvent{
		ToolName: call.Name,
		CallID:   call.ID,
		Input:    call.Args,
		Output:   msg.Content,
		IsError:  msg.IsError,
		Duration: time.Since(start),
	})
	return msg
}

func safeExecute(ctx context.Context, tools Dispatcher, call domain.ToolCall) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("tool %q panicked: %v", call.Name, p)
		}
	}()
	return tools.Execute(ctx, call.Name, call.Args)
}

// render turns a capability result into message content: strings verbatim,
// everything else as JSON.
func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
