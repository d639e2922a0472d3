package graph

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/aretw0/stategraph/internal/logging"
	"github.com/aretw0/stategraph/pkg/domain"
)

// route is the outgoing routing of one node (or of Start).
// Exactly one of to and branch is set.
type route struct {
	to      string
	branch  Branch
	targets map[string]string
}

func (r *route) conditional() bool { return r.branch != nil }

// Builder manages the graph construction.
// Forward references are allowed; Compile checks that every name resolves.
type Builder struct {
	name             string
	schema           *domain.Schema
	nodes            map[string]*Node
	order            []string
	routes           map[string]*route
	errs             []error
	frozen           bool
	allowUnreachable bool
	logger           *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithName labels the graph for logs, metrics and introspection.
func WithName(name string) Option {
	return func(b *Builder) {
		b.name = name
	}
}

// WithAllowUnreachable downgrades unreachable nodes from a Compile error to a
// logged warning listed in Graph.Warnings.
func WithAllowUnreachable() Option {
	return func(b *Builder) {
		b.allowUnreachable = true
	}
}

// WithLogger sets the logger used for build warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// New creates a new graph builder over schema.
func New(schema *domain.Schema, opts ...Option) *Builder {
	b := &Builder{
		schema: schema,
		nodes:  make(map[string]*Node),
		routes: make(map[string]*route),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddNode registers a named node.
func (b *Builder) AddNode(name string, fn NodeFunc, opts ...NodeOption) error {
	if b.frozen {
		return &domain.GraphFrozenError{Op: "add node " + name}
	}
	var err error
	switch {
	case domain.IsReserved(name):
		err = fmt.Errorf("%w: node name %q is reserved", domain.ErrBuild, name)
	case name == "":
		err = fmt.Errorf("%w: node name is empty", domain.ErrBuild)
	case fn == nil:
		err = fmt.Errorf("%w: node %q has nil function", domain.ErrBuild, name)
	}
	if err == nil {
		if _, dup := b.nodes[name]; dup {
			err = &domain.DuplicateNodeError{Node: name}
		}
	}
	if err != nil {
		return b.record(err)
	}

	n := &Node{name: name, fn: fn, kind: domain.NodeKindStep}
	for _, opt := range opts {
		opt(n)
	}
	b.nodes[name] = n
	b.order = append(b.order, name)
	return nil
}

// AddEdge adds an unconditional edge. from may be domain.Start (designating the
// entry node) and to may be domain.End.
func (b *Builder) AddEdge(from, to string) error {
	if b.frozen {
		return &domain.GraphFrozenError{Op: fmt.Sprintf("add edge %s -> %s", from, to)}
	}
	if err := b.checkEndpoints(from, to); err != nil {
		return b.record(err)
	}
	if existing, ok := b.routes[from]; ok {
		reason := fmt.Sprintf("already routes to %q", existing.to)
		if existing.conditional() {
			reason = "already has a conditional edge group"
		}
		return b.record(&domain.AmbiguousRouteError{Node: from, Reason: reason})
	}
	b.routes[from] = &route{to: to}
	return nil
}

// AddConditionalEdge adds the conditional edge group of from: after from runs,
// branch picks a label and targets maps it to the next node (or domain.End).
func (b *Builder) AddConditionalEdge(from string, branch Branch, targets map[string]string) error {
	if b.frozen {
		return &domain.GraphFrozenError{Op: "add conditional edge from " + from}
	}
	if branch == nil {
		return b.record(fmt.Errorf("%w: conditional edge from %q has nil branch", domain.ErrBuild, from))
	}
	for _, to := range targets {
		if err := b.checkEndpoints(from, to); err != nil {
			return b.record(err)
		}
	}
	if existing, ok := b.routes[from]; ok {
		reason := "already has a conditional edge group"
		if !existing.conditional() {
			reason = fmt.Sprintf("already routes unconditionally to %q", existing.to)
		}
		return b.record(&domain.AmbiguousRouteError{Node: from, Reason: reason})
	}
	b.routes[from] = &route{branch: branch, targets: maps.Clone(targets)}
	return nil
}

func (b *Builder) checkEndpoints(from, to string) error {
	switch {
	case from == domain.End:
		return fmt.Errorf("%w: edges cannot leave %s", domain.ErrBuild, domain.End)
	case to == domain.Start:
		return fmt.Errorf("%w: edges cannot enter %s", domain.ErrBuild, domain.Start)
	case from == "" || to == "":
		return fmt.Errorf("%w: edge %q -> %q has an empty endpoint", domain.ErrBuild, from, to)
	}
	return nil
}

func (b *Builder) record(err error) error {
	b.errs = append(b.errs, err)
	return err
}

// Compile validates the registry and edges and returns an immutable Graph.
// It freezes the builder: later mutations fail with GraphFrozenError. Compile
// itself may be called again and yields a structurally equal Graph.
func (b *Builder) Compile() (*Graph, error) {
	b.frozen = true

	routes := make(map[string]*route, len(b.routes))
	for from, r := range b.routes {
		cp := *r
		cp.targets = maps.Clone(r.targets)
		routes[from] = &cp
	}

	g := &Graph{
		name:   b.name,
		schema: b.schema,
		nodes:  maps.Clone(b.nodes),
		order:  append([]string(nil), b.order...),
		routes: routes,
	}

	if err := b.validate(g); err != nil {
		return nil, err
	}
	for _, w := range g.warnings {
		b.logger.Warn("graph build warning", "graph", b.name, "error", w)
	}
	return g, nil
}
