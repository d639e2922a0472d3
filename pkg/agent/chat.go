package agent

import (
	"context"
	"fmt"

	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
	"github.com/aretw0/stategraph/pkg/ports"
)

// DefaultErrorField is the string field that receives generator failures.
const DefaultErrorField = "error"

type chatConfig struct {
	retries    int
	errorField string
	system     string
}

// ChatOption configures ChatNode.
type ChatOption func(*chatConfig)

// WithRetries retries a failing Generate call up to n more times before the
// failure is recorded in state.
func WithRetries(n int) ChatOption {
	return func(c *chatConfig) {
		if n > 0 {
			c.retries = n
		}
	}
}

// WithErrorField sets the string field that records generator failures.
// The field is only written when the schema declares it.
func WithErrorField(name string) ChatOption {
	return func(c *chatConfig) {
		c.errorField = name
	}
}

// WithSystemPrompt prepends a system message to every Generate call.
// The prompt is not stored in state.
func WithSystemPrompt(prompt string) ChatOption {
	return func(c *chatConfig) {
		c.system = prompt
	}
}

// ChatNode returns a node that sends the conversation in field to gen and
// appends the reply. A generator failure does not fail the run: it is
// appended as an error-flagged assistant message and copied to the error field.
func ChatNode(field string, gen ports.Generator, opts ...ChatOption) graph.NodeFunc {
	cfg := chatConfig{errorField: DefaultErrorField}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, s domain.State) (domain.Partial, error) {
		history, err := s.Messages(field)
		if err != nil {
			return nil, err
		}
		if cfg.system != "" {
			history = append([]domain.Message{domain.SystemMessage(cfg.system)}, history...)
		}

		reply, genErr := generate(ctx, gen, history, cfg.retries)
		hasErrField := cfg.errorField != "" && s.Schema().Has(cfg.errorField)

		if genErr != nil {
			out := domain.Partial{field: []domain.Message{{
				Role:    domain.RoleAssistant,
				Content: fmt.Sprintf("Error: %v", genErr),
				IsError: true,
			}}}
			if hasErrField {
				out[cfg.errorField] = genErr.Error()
			}
			return out, nil
		}

		if reply.Role == "" {
			reply.Role = domain.RoleAssistant
		}
		out := domain.Partial{field: []domain.Message{reply}}
		if hasErrField {
			if prev, _ := s.String(cfg.errorField); prev != "" {
				out[cfg.errorField] = ""
			}
		}
		return out, nil
	}
}

func generate(ctx context.Context, gen ports.Generator, history []domain.Message, retries int) (domain.Message, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Message{}, err
		}
		reply, err := gen.Generate(ctx, history)
		if err == nil {
			return reply, nil
		}
		lastErr = err
	}
	if retries > 0 {
		return domain.Message{}, fmt.Errorf("generate failed after %d attempts: %w", retries+1, lastErr)
	}
	return domain.Message{}, lastErr
}
