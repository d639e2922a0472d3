package stategraph

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/stategraph/internal/logging"
	"github.com/aretw0/stategraph/internal/runtime"
	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
)

// Engine is the high-level entry point for the stategraph library.
// It wraps the internal runtime and provides a simplified API for consumers.
// An Engine is immutable and may run any number of concurrent runs.
type Engine struct {
	runtime     *runtime.Executor
	graph       *graph.Graph
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxSteps bounds node invocations per run. Zero (the default) means unbounded.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSteps(n))
	}
}

// WithMiddleware wraps every node function, first middleware outermost.
func WithMiddleware(mws ...graph.Middleware) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMiddleware(mws...))
	}
}

// WithRunIDGenerator replaces the default UUID run IDs.
func WithRunIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithRunIDGenerator(gen))
	}
}

// New initializes an Engine for a compiled graph.
func New(g *graph.Graph, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, errors.New("graph is required")
	}
	eng := &Engine{graph: g}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewExecutor(g, runtimeOpts...)

	return eng, nil
}

// Run executes one run from fresh state built from the schema defaults merged
// with initial. The result is always returned; err is non-nil iff the run failed.
func (e *Engine) Run(ctx context.Context, initial map[string]any) (*domain.Result, error) {
	return e.runtime.Run(ctx, initial)
}

// Graph returns the compiled graph.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Name returns the graph name.
func (e *Engine) Name() string {
	return e.graph.Name()
}
