package graph

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/aretw0/stategraph/pkg/domain"
)

// Graph is a compiled, immutable graph. It is safe for concurrent runs.
type Graph struct {
	name     string
	schema   *domain.Schema
	nodes    map[string]*Node
	order    []string
	routes   map[string]*route
	warnings []error
}

// Decision is the outcome of routing out of a node.
type Decision struct {
	// Label is the branch label, empty for unconditional edges.
	Label  string
	Target string
}

// Name returns the graph name given with WithName.
func (g *Graph) Name() string { return g.name }

// Schema returns the state schema the graph runs on.
func (g *Graph) Schema() *domain.Schema { return g.schema }

// Node looks up a registered node.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Entry returns the target of the Start route, or Start itself when the
// entry is conditional.
func (g *Graph) Entry() string {
	r := g.routes[domain.Start]
	if r.conditional() {
		return domain.Start
	}
	return r.to
}

// Warnings lists the non-fatal problems found by Compile.
func (g *Graph) Warnings() []error { return slices.Clone(g.warnings) }

// Describe returns the introspection view served by the adapters.
func (g *Graph) Describe() domain.GraphInfo {
	info := domain.GraphInfo{
		Name:   g.name,
		Entry:  g.Entry(),
		Nodes:  g.Nodes(),
		Edges:  g.Edges(),
		Fields: g.schema.Names(),
	}
	for _, w := range g.warnings {
		info.Warnings = append(info.Warnings, w.Error())
	}
	return info
}

// Nodes lists the registered nodes in registration order.
func (g *Graph) Nodes() []domain.NodeInfo {
	out := make([]domain.NodeInfo, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name].Info())
	}
	return out
}

// Edges lists every edge: Start first, then nodes in registration order.
// Conditional edges appear once per label, declared labels first.
func (g *Graph) Edges() []domain.EdgeInfo {
	var out []domain.EdgeInfo
	for _, from := range g.routeOrder() {
		r := g.routes[from]
		if !r.conditional() {
			out = append(out, domain.EdgeInfo{From: from, To: r.to})
			continue
		}
		for _, l := range r.labelOrder() {
			out = append(out, domain.EdgeInfo{From: from, To: r.targets[l], Label: l})
		}
	}
	return out
}

// Equal reports whether two graphs have the same nodes and edges.
func (g *Graph) Equal(o *Graph) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.name == o.name &&
		g.schema == o.schema &&
		reflect.DeepEqual(g.Nodes(), o.Nodes()) &&
		reflect.DeepEqual(g.Edges(), o.Edges())
}

// Next routes out of from given the state merged after from ran.
// Branch failures and panics come back as *domain.NodeExecutionError with
// Phase "branch"; an unmapped label as *domain.UnknownBranchLabelError.
func (g *Graph) Next(ctx context.Context, from string, s domain.State) (d Decision, err error) {
	r, ok := g.routes[from]
	if !ok {
		return Decision{}, &domain.MissingRouteError{Node: from}
	}
	if !r.conditional() {
		return Decision{Target: r.to}, nil
	}

	defer func() {
		if p := recover(); p != nil {
			d = Decision{}
			err = &domain.NodeExecutionError{Node: from, Phase: "branch", Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	label, rerr := r.branch.Route(ctx, s)
	if rerr != nil {
		return Decision{}, &domain.NodeExecutionError{Node: from, Phase: "branch", Err: rerr}
	}
	target, ok := r.targets[label]
	if !ok {
		return Decision{Label: label}, &domain.UnknownBranchLabelError{Node: from, Label: label}
	}
	return Decision{Label: label, Target: target}, nil
}

// routeOrder returns the route sources: Start, registered nodes in order,
// then any unknown sources sorted.
func (g *Graph) routeOrder() []string {
	out := make([]string, 0, len(g.routes))
	if _, ok := g.routes[domain.Start]; ok {
		out = append(out, domain.Start)
	}
	for _, name := range g.order {
		if _, ok := g.routes[name]; ok {
			out = append(out, name)
		}
	}
	var rest []string
	for _, from := range slices.Sorted(maps.Keys(g.routes)) {
		if from == domain.Start {
			continue
		}
		if _, ok := g.nodes[from]; !ok {
			rest = append(rest, from)
		}
	}
	return append(out, rest...)
}
