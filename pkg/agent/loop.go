package agent

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
	"github.com/aretw0/stategraph/pkg/ports"
)

// Node and field names of the prebuilt graphs.
const (
	NodeChat      = "chat"
	NodeTools     = "tools"
	FieldMessages = "messages"
)

type loopConfig struct {
	name   string
	logger *slog.Logger
	chat   []ChatOption
}

// LoopOption configures NewToolLoop and NewChat.
type LoopOption func(*loopConfig)

// WithGraphName overrides the graph name.
func WithGraphName(name string) LoopOption {
	return func(c *loopConfig) {
		c.name = name
	}
}

// WithBuildLogger sets the logger for build warnings.
func WithBuildLogger(logger *slog.Logger) LoopOption {
	return func(c *loopConfig) {
		c.logger = logger
	}
}

// WithChatOptions forwards options to the chat node.
func WithChatOptions(opts ...ChatOption) LoopOption {
	return func(c *loopConfig) {
		c.chat = append(c.chat, opts...)
	}
}

// Schema is the state of the prebuilt graphs: the conversation plus the last
// generator error.
func Schema() *domain.Schema {
	return domain.MustSchema(
		domain.Messages(FieldMessages),
		domain.String(DefaultErrorField, ""),
	)
}

func (c *loopConfig) builder(defaultName string) *graph.Builder {
	name := c.name
	if name == "" {
		name = defaultName
	}
	opts := []graph.Option{graph.WithName(name)}
	if c.logger != nil {
		opts = append(opts, graph.WithLogger(c.logger))
	}
	return graph.New(Schema(), opts...)
}

// NewToolLoop builds the tool-using conversation graph:
//
//	Start -> chat; chat -(has-tool-call)-> tools; chat -(done)-> End; tools -> chat
func NewToolLoop(gen ports.Generator, tools Dispatcher, opts ...LoopOption) (*graph.Graph, error) {
	cfg := &loopConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	b := cfg.builder("tool-chat")
	err := firstErr(
		b.AddNode(NodeChat, ChatNode(FieldMessages, gen, cfg.chat...),
			graph.WithDescription("asks the model for the next message")),
		b.AddNode(NodeTools, ToolNode(FieldMessages, tools),
			graph.AsToolNode(), graph.WithDescription("runs the requested tool calls")),
		b.AddEdge(domain.Start, NodeChat),
		b.AddConditionalEdge(NodeChat, ToolsCondition(FieldMessages), map[string]string{
			domain.LabelHasToolCall: NodeTools,
			domain.LabelDone:        domain.End,
		}),
		b.AddEdge(NodeTools, NodeChat),
	)
	if err != nil {
		return nil, fmt.Errorf("build tool loop: %w", err)
	}
	return b.Compile()
}

// NewChat builds the plain conversation graph: Start -> chat -> End.
func NewChat(gen ports.Generator, opts ...LoopOption) (*graph.Graph, error) {
	cfg := &loopConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	b := cfg.builder("chat")
	err := firstErr(
		b.AddNode(NodeChat, ChatNode(FieldMessages, gen, cfg.chat...),
			graph.WithDescription("asks the model for the next message")),
		b.AddEdge(domain.Start, NodeChat),
		b.AddEdge(NodeChat, domain.End),
	)
	if err != nil {
		return nil, fmt.Errorf("build chat: %w", err)
	}
	return b.Compile()
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
