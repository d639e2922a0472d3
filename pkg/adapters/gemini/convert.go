package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"google.golang.org/genai"

	"github.com/aretw0/stategraph/pkg/domain"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

// convertMessages maps the conversation to Gemini contents. System messages are
// joined into the system instruction.
func convertMessages(msgs []domain.Message) ([]*genai.Content, *genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, m.Content)
			}
		case domain.RoleAssistant:
			parts := make([]*genai.Part, 0, 1+len(m.ToolCalls))
			if strings.TrimSpace(m.Content) != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, c := range m.ToolCalls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   c.ID,
					Name: c.Name,
					Args: c.Args,
				}})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: roleModel, Parts: parts})
			}
		case domain.RoleTool:
			key := "output"
			if m.IsError {
				key = "error"
			}
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     m.Name,
				Response: map[string]any{key: m.Content},
			}}
			// Consecutive tool results answer one model turn.
			if n := len(contents); n > 0 && isFunctionResponse(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: roleUser, Parts: []*genai.Part{part}})
		default:
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			contents = append(contents, &genai.Content{Role: roleUser, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	if len(system) == 0 {
		return contents, nil
	}
	return contents, &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
}

func isFunctionResponse(c *genai.Content) bool {
	if c.Role != roleUser || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}

// convertTools declares every tool in a single Gemini tool.
func convertTools(tools []domain.Tool) ([]*genai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		if t.Name == "" {
			return nil, errors.New("gemini: tool name is required")
		}
		decl := &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
		if t.Parameters != nil {
			// Round trip so the SDK receives plain JSON values.
			raw, err := json.Marshal(t.Parameters)
			if err != nil {
				return nil, fmt.Errorf("gemini: tool %q parameters: %w", t.Name, err)
			}
			var schema any
			if err := json.Unmarshal(raw, &schema); err != nil {
				return nil, fmt.Errorf("gemini: tool %q parameters: %w", t.Name, err)
			}
			decl.ParametersJsonSchema = schema
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// convertResponse reads the first candidate. Function calls without an ID get
// a generated one so tool results can be matched.
func convertResponse(resp *genai.GenerateContentResponse) (domain.Message, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return domain.Message{}, errors.New("gemini: empty response")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return domain.Message{}, fmt.Errorf("gemini: candidate has no content (finish reason %q)", cand.FinishReason)
	}

	var text strings.Builder
	var calls []domain.ToolCall
	for _, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			id := p.FunctionCall.ID
			if id == "" {
				id = "call_" + ulid.Make().String()
			}
			calls = append(calls, domain.ToolCall{
				ID:   id,
				Name: p.FunctionCall.Name,
				Args: p.FunctionCall.Args,
			})
		case p.Text != "" && !p.Thought:
			text.WriteString(p.Text)
		}
	}
	return domain.AssistantMessage(text.String(), calls...), nil
}
