package domain

import "maps"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation field. Messages are values: the state
// appends copies and never edits an entry in place.
type Message struct {
	Role       Role       `json:"role" mapstructure:"role"`
	Content    string     `json:"content" mapstructure:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" mapstructure:"tool_calls"`
	ToolCallID string     `json:"tool_call_id,omitempty" mapstructure:"tool_call_id"`
	// Name is the capability that produced a tool message.
	Name    string `json:"name,omitempty" mapstructure:"name"`
	IsError bool   `json:"is_error,omitempty" mapstructure:"is_error"`
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// SystemMessage builds a system prompt message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// AssistantMessage builds an assistant reply, optionally requesting tool calls.
func AssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage builds the result message of one tool call.
func ToolMessage(call ToolCall, content string, isError bool) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		Name:       call.Name,
		IsError:    isError,
	}
}

// HasToolCalls reports whether the message carries pending tool calls.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Clone returns a deep copy so the caller cannot alias the tool call slice or args.
func (m Message) Clone() Message {
	if m.ToolCalls == nil {
		return m
	}
	calls := make([]ToolCall, len(m.ToolCalls))
	for i, c := range m.ToolCalls {
		c.Args = maps.Clone(c.Args)
		calls[i] = c
	}
	m.ToolCalls = calls
	return m
}

func cloneMessages(in []Message) []Message {
	if len(in) == 0 {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}
