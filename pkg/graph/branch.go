package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/stategraph/pkg/domain"
)

// Branch selects the next node of a conditional edge by label.
// The label set is closed: Compile checks that every label has a target.
type Branch interface {
	// Labels lists every label Route can return.
	Labels() []string
	// Route inspects the merged state and returns one of Labels.
	Route(ctx context.Context, s domain.State) (string, error)
}

// RouteFunc is the function form of Branch.Route.
type RouteFunc func(ctx context.Context, s domain.State) (string, error)

type funcBranch struct {
	labels []string
	route  RouteFunc
}

// NewBranch declares a branch producing one of labels.
func NewBranch(labels []string, route RouteFunc) Branch {
	return &funcBranch{labels: slices.Clone(labels), route: route}
}

func (b *funcBranch) Labels() []string { return slices.Clone(b.labels) }

func (b *funcBranch) Route(ctx context.Context, s domain.State) (string, error) {
	return b.route(ctx, s)
}

// EnumBranch routes on the value of an enum field. Its labels are the values
// declared in the graph schema, so the mapping is checked exhaustively at Compile.
func EnumBranch(field string) Branch {
	return &enumBranch{field: field}
}

type enumBranch struct {
	field  string
	labels []string
}

func (b *enumBranch) Labels() []string { return slices.Clone(b.labels) }

func (b *enumBranch) Route(_ context.Context, s domain.State) (string, error) {
	return s.String(b.field)
}

// bind resolves the label set from the schema.
func (b *enumBranch) bind(schema *domain.Schema) (Branch, error) {
	f, ok := schema.Field(b.field)
	if !ok {
		return nil, &domain.SchemaError{Field: b.field, Reason: "is routed on but not declared"}
	}
	if f.Kind != domain.KindEnum {
		return nil, &domain.SchemaError{Field: b.field, Reason: fmt.Sprintf("is routed on but is %s, not enum", f.Kind)}
	}
	return &enumBranch{field: b.field, labels: slices.Clone(f.Values)}, nil
}

// schemaBinder is implemented by branches whose labels come from the schema.
type schemaBinder interface {
	bind(schema *domain.Schema) (Branch, error)
}
