package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/stategraph/pkg/domain"
)

// ErrToolNotFound is returned by Execute for names that were never registered.
var ErrToolNotFound = errors.New("tool not found")

// ToolFunction defines the signature for a tool implementation.
// It receives a context and a map of arguments, and returns a result or error.
type ToolFunction func(ctx context.Context, args map[string]any) (any, error)

// ToolOption configures a registered tool.
type ToolOption func(*entry)

// WithDescription sets the description advertised to the response generator.
func WithDescription(desc string) ToolOption {
	return func(e *entry) {
		e.tool.Description = desc
	}
}

// WithSchema sets the JSON schema of the tool arguments.
func WithSchema(schema *jsonschema.Schema) ToolOption {
	return func(e *entry) {
		e.schema = schema
	}
}

type entry struct {
	tool   domain.Tool
	schema *jsonschema.Schema
	fn     ToolFunction
}

// Registry manages the available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*entry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*entry),
	}
}

// Register adds a tool to the registry.
// If a tool with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn ToolFunction, opts ...ToolOption) error {
	if name == "" {
		return errors.New("tool name is required")
	}
	if fn == nil {
		return fmt.Errorf("tool %q has nil function", name)
	}
	e := &entry{tool: domain.Tool{Name: name}, fn: fn}
	for _, opt := range opts {
		opt(e)
	}
	if e.schema != nil {
		params, err := schemaToMap(e.schema)
		if err != nil {
			return fmt.Errorf("tool %q: %w", name, err)
		}
		e.tool.Parameters = params
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = e
	return nil
}

// Bind registers a typed tool: the input schema is inferred from T and the
// raw arguments are decoded into T before fn runs.
func Bind[T any](r *Registry, name, description string, fn func(ctx context.Context, in T) (any, error)) error {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return fmt.Errorf("infer schema for tool %q: %w", name, err)
	}
	return r.Register(name, func(ctx context.Context, args map[string]any) (any, error) {
		var in T
		if err := Decode(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return fn(ctx, in)
	}, WithDescription(description), WithSchema(schema))
}

// Decode converts loosely typed tool arguments into out using its json tags.
func Decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

// Execute looks up a tool by name and executes it.
// Returns ErrToolNotFound if the tool is not registered.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	return e.fn(ctx, args)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Tools lists the registered tool declarations sorted by name.
func (r *Registry) Tools() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Tool, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.tool)
	}
	slices.SortFunc(out, func(a, b domain.Tool) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Schema returns the argument schema of a tool, if one was declared.
func (r *Registry) Schema(name string) (*jsonschema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok || e.schema == nil {
		return nil, false
	}
	return e.schema, true
}

func schemaToMap(s *jsonschema.Schema) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return out, nil
}
