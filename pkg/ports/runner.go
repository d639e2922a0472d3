package ports

import (
	"context"

	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
)

// Runner executes runs of one compiled graph. *stategraph.Engine implements it.
type Runner interface {
	Run(ctx context.Context, initial map[string]any) (*domain.Result, error)
	Graph() *graph.Graph
}

// Catalog resolves runnable graphs by name for the serving adapters.
type Catalog interface {
	// Names lists the graph names in a stable order.
	Names() []string
	Runner(name string) (Runner, bool)
}
