package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/stategraph/internal/logging"
	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
)

// Executor is the core state machine runner.
// It holds no per-run state and is safe for concurrent use.
type Executor struct {
	graph    *graph.Graph
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	maxSteps int
	newRunID func() string
	now      func() time.Time
	mws      []graph.Middleware
	funcs    map[string]graph.NodeFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithMaxSteps bounds the number of node invocations per run. Zero means unbounded.
func WithMaxSteps(n int) Option {
	return func(e *Executor) {
		e.maxSteps = n
	}
}

// WithMiddleware wraps every node function. The first middleware is the outermost.
func WithMiddleware(mws ...graph.Middleware) Option {
	return func(e *Executor) {
		e.mws = append(e.mws, mws...)
	}
}

// WithRunIDGenerator replaces the default UUID run IDs.
func WithRunIDGenerator(gen func() string) Option {
	return func(e *Executor) {
		if gen != nil {
			e.newRunID = gen
		}
	}
}

// WithClock replaces time.Now for result timestamps and event durations.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an executor for a compiled graph.
func NewExecutor(g *graph.Graph, opts ...Option) *Executor {
	e := &Executor{
		graph:    g,
		logger:   logging.NewNop(),
		newRunID: uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.funcs = make(map[string]graph.NodeFunc)
	for _, info := range g.Nodes() {
		n, _ := g.Node(info.Name)
		e.funcs[info.Name] = graph.Chain(info, n.Func(), e.mws...)
	}
	return e
}

// Graph returns the compiled graph the executor runs.
func (e *Executor) Graph() *graph.Graph { return e.graph }

// run is the mutable bookkeeping of one Run call.
type run struct {
	res    *domain.Result
	logger *slog.Logger
}

// Run executes the graph from Start until End or the first failure.
// The returned error is non-nil iff the result status is StatusFailed;
// the result is always returned.
func (e *Executor) Run(ctx context.Context, initial map[string]any) (*domain.Result, error) {
	runID := e.newRunID()
	r := &run{
		res: &domain.Result{
			RunID:     runID,
			Status:    domain.StatusRunning,
			StartedAt: e.now(),
		},
		logger: e.logger.With("run_id", runID, "graph", e.graph.Name()),
	}
	r.logger.DebugContext(ctx, "run started")

	state, err := domain.NewState(e.graph.Schema(), initial)
	if err != nil {
		return e.fail(ctx, r, domain.Start, fmt.Errorf("initial state: %w", err))
	}
	r.res.State = state

	current := domain.Start
	for {
		next, err := e.route(ctx, r, current, state)
		if err != nil {
			return e.fail(ctx, r, current, err)
		}
		if next == domain.End {
			e.setStatus(r, domain.StatusDone, domain.End)
			return e.finish(ctx, r), nil
		}

		if err := ctx.Err(); err != nil {
			return e.fail(ctx, r, next, fmt.Errorf("%w: %w", domain.ErrRun, err))
		}
		if e.maxSteps > 0 && r.res.Steps >= e.maxSteps {
			return e.fail(ctx, r, next, &domain.MaxStepsExceededError{Limit: e.maxSteps, Node: next})
		}

		node, _ := e.graph.Node(next)
		if node.Kind() == domain.NodeKindTool {
			e.setStatus(r, domain.StatusAwaitingTools, next)
		} else {
			e.setStatus(r, domain.StatusRunning, next)
		}

		state, err = e.step(ctx, r, node, state)
		if err != nil {
			return e.fail(ctx, r, next, err)
		}
		current = next
	}
}

// step invokes one node and merges its partial update.
func (e *Executor) step(ctx context.Context, r *run, node *graph.Node, before domain.State) (domain.State, error) {
	name := node.Name()
	r.res.Steps++
	r.res.Path = append(r.res.Path, name)
	step := r.res.Steps

	e.emitNodeEnter(ctx, r, node, step)
	start := e.now()

	nodeCtx := domain.WithRunScope(ctx, e.hooks, r.res.RunID, name)
	partial, err := e.invoke(nodeCtx, name, before)
	if err != nil {
		e.emitNodeLeave(ctx, r, node, step, e.now().Sub(start), nil, err)
		return before, err
	}

	after, err := domain.Merge(before, partial)
	if err != nil {
		err = fmt.Errorf("merge output of node %q: %w", name, err)
		e.emitNodeLeave(ctx, r, node, step, e.now().Sub(start), nil, err)
		return before, err
	}
	r.res.State = after

	changed := domain.Diff(before, after).Changed()
	e.emitNodeLeave(ctx, r, node, step, e.now().Sub(start), changed, nil)
	r.logger.DebugContext(ctx, "node completed", "node", name, "step", step, "changed", changed)
	return after, nil
}

// invoke calls the node function, turning errors and panics into NodeExecutionError.
func (e *Executor) invoke(ctx context.Context, name string, s domain.State) (partial domain.Partial, err error) {
	defer func() {
		if p := recover(); p != nil {
			partial = nil
			err = &domain.NodeExecutionError{Node: name, Phase: "node", Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	partial, err = e.funcs[name](ctx, s)
	if err != nil {
		var nodeErr *domain.NodeExecutionError
		if errors.As(err, &nodeErr) && nodeErr.Node == name {
			return nil, err
		}
		return nil, &domain.NodeExecutionError{Node: name, Phase: "node", Err: err}
	}
	return partial, nil
}

// route resolves the successor of from, emitting OnBranch for conditional edges.
func (e *Executor) route(ctx context.Context, r *run, from string, s domain.State) (string, error) {
	d, err := e.graph.Next(ctx, from, s)
	if err != nil {
		return "", err
	}
	if d.Label != "" {
		r.logger.DebugContext(ctx, "branch taken", "node", from, "label", d.Label, "target", d.Target)
		if e.hooks.OnBranch != nil {
			e.hooks.OnBranch(ctx, &domain.BranchEvent{
				EventBase: e.base(domain.EventBranch, r),
				Node:      from,
				Label:     d.Label,
				Target:    d.Target,
			})
		}
	}
	return d.Target, nil
}

func (e *Executor) setStatus(r *run, to domain.ExecutionStatus, node string) {
	from := r.res.Status
	if from == to {
		return
	}
	r.res.Status = to
	r.res.Transitions = append(r.res.Transitions, domain.StatusChange{
		From: from,
		To:   to,
		Node: node,
		Step: r.res.Steps,
	})
}

func (e *Executor) fail(ctx context.Context, r *run, node string, err error) (*domain.Result, error) {
	e.setStatus(r, domain.StatusFailed, node)
	r.res.Err = err
	r.logger.ErrorContext(ctx, "run failed", "node", node, "steps", r.res.Steps, "error", err)
	return e.finish(ctx, r), err
}

func (e *Executor) finish(ctx context.Context, r *run) *domain.Result {
	r.res.FinishedAt = e.now()
	if r.res.Status == domain.StatusDone {
		r.logger.DebugContext(ctx, "run completed", "steps", r.res.Steps, "path", r.res.Path)
	}
	if e.hooks.OnRunEnd != nil {
		e.hooks.OnRunEnd(ctx, &domain.RunEvent{
			EventBase: e.base(domain.EventRunEnd, r),
			Status:    r.res.Status,
			Steps:     r.res.Steps,
			Err:       r.res.Err,
		})
	}
	return r.res
}

func (e *Executor) base(t domain.EventType, r *run) domain.EventBase {
	return domain.EventBase{Timestamp: e.now(), Type: t, RunID: r.res.RunID}
}

func (e *Executor) emitNodeEnter(ctx context.Context, r *run, node *graph.Node, step int) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: e.base(domain.EventNodeEnter, r),
		Node:      node.Name(),
		Kind:      node.Kind(),
		Step:      step,
	})
}

func (e *Executor) emitNodeLeave(ctx context.Context, r *run, node *graph.Node, step int, d time.Duration, changed []string, err error) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: e.base(domain.EventNodeLeave, r),
		Node:      node.Name(),
		Kind:      node.Kind(),
		Step:      step,
		Duration:  d,
		Changed:   changed,
		Err:       err,
	})
}
