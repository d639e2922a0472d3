package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/stategraph/pkg/domain"
)

// validate checks for dangling references, ambiguous or missing routes,
// incomplete branches and reachability. Every problem found is reported,
// joined in a deterministic order.
func (b *Builder) validate(g *Graph) error {
	errs := slices.Clone(b.errs)

	if g.schema == nil {
		errs = append(errs, &domain.SchemaError{Reason: "graph has no schema"})
		return errors.Join(errs...)
	}

	for _, from := range g.routeOrder() {
		r := g.routes[from]
		if binder, ok := r.branch.(schemaBinder); ok {
			bound, err := binder.bind(g.schema)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			r.branch = bound
		}
		errs = append(errs, g.checkRoute(from, r)...)
	}

	entry, hasEntry := g.routes[domain.Start]
	if !hasEntry {
		errs = append(errs, domain.ErrNoEntry)
	}

	for _, name := range g.order {
		if _, ok := g.routes[name]; !ok {
			errs = append(errs, &domain.MissingRouteError{Node: name})
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	reached := g.reachable(domain.Start)
	for _, name := range g.order {
		if reached[name] {
			continue
		}
		unreachable := &domain.UnreachableNodeError{Node: name}
		if b.allowUnreachable {
			g.warnings = append(g.warnings, unreachable)
			continue
		}
		errs = append(errs, unreachable)
	}
	if !reached[domain.End] {
		target := entry.to
		if entry.conditional() {
			target = domain.Start
		}
		errs = append(errs, &domain.NoTerminalPathError{Entry: target})
	}
	return errors.Join(errs...)
}

func (g *Graph) checkRoute(from string, r *route) []error {
	var errs []error
	if from != domain.Start {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, &domain.UnknownNodeError{Node: from, Referrer: from})
		}
	}
	for _, to := range r.targetList() {
		if to == domain.End {
			continue
		}
		if _, ok := g.nodes[to]; !ok {
			errs = append(errs, &domain.UnknownNodeError{Node: to, Referrer: from})
		}
	}
	if !r.conditional() {
		return errs
	}

	labels := r.branch.Labels()
	if len(labels) == 0 {
		errs = append(errs, fmt.Errorf("%w: branch on %q declares no labels", domain.ErrBuild, from))
	}
	var missing []string
	for _, l := range labels {
		if _, ok := r.targets[l]; !ok {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		errs = append(errs, &domain.MissingBranchTargetError{Node: from, Labels: missing})
	}
	return errs
}

// reachable walks every route from start (breadth first).
func (g *Graph) reachable(start string) map[string]bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		r, ok := g.routes[current]
		if !ok {
			continue
		}
		for _, to := range r.targetList() {
			if !visited[to] {
				visited[to] = true
				queue = append(queue, to)
			}
		}
	}
	return visited
}

// targetList returns the distinct targets in label order.
func (r *route) targetList() []string {
	if !r.conditional() {
		return []string{r.to}
	}
	var out []string
	for _, l := range r.labelOrder() {
		if to := r.targets[l]; !slices.Contains(out, to) {
			out = append(out, to)
		}
	}
	return out
}

// labelOrder lists declared labels first, then extra mapped labels sorted.
func (r *route) labelOrder() []string {
	declared := r.branch.Labels()
	var extra []string
	for l := range r.targets {
		if !slices.Contains(declared, l) {
			extra = append(extra, l)
		}
	}
	slices.Sort(extra)
	var out []string
	for _, l := range declared {
		if _, ok := r.targets[l]; ok {
			out = append(out, l)
		}
	}
	return append(out, extra...)
}
