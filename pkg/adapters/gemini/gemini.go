// Package gemini implements ports.Generator on top of the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/aretw0/stategraph/pkg/domain"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// Config holds the settings of the Gemini generator.
type Config struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	// Tools are advertised to the model on every call.
	Tools []domain.Tool
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator asks a Gemini model for the next assistant message.
type Generator struct {
	model  string
	config Config
	models contentGenerator
	tools  []*genai.Tool
}

// New creates a Generator with its own API client.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newGenerator(client.Models, cfg)
}

func newGenerator(models contentGenerator, cfg Config) (*Generator, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	tools, err := convertTools(cfg.Tools)
	if err != nil {
		return nil, err
	}
	return &Generator{model: model, config: cfg, models: models, tools: tools}, nil
}

// Model returns the model name requests are sent to.
func (g *Generator) Model() string { return g.model }

// Generate implements ports.Generator.
func (g *Generator) Generate(ctx context.Context, messages []domain.Message) (domain.Message, error) {
	contents, system := convertMessages(messages)
	if len(contents) == 0 {
		return domain.Message{}, errors.New("gemini: conversation has no user content")
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Tools:             g.tools,
	}
	if g.config.Temperature > 0 {
		t := g.config.Temperature
		config.Temperature = &t
	}
	if g.config.MaxOutputTokens > 0 {
		config.MaxOutputTokens = g.config.MaxOutputTokens
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return domain.Message{}, fmt.Errorf("gemini: generate content: %w", err)
	}
	return convertResponse(resp)
}
