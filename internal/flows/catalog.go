package flows

import (
	"fmt"
	"slices"

	"github.com/aretw0/stategraph"
	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
	"github.com/aretw0/stategraph/pkg/ports"
)

// GeneratorFactory creates a response generator that advertises tools.
type GeneratorFactory func(tools []domain.Tool) (ports.Generator, error)

// Deps are the collaborators of the demo graphs.
type Deps struct {
	Rates  Rates
	Quotes ports.QuoteSource
	// Generators is optional: without it the chat graphs are not registered.
	Generators GeneratorFactory
	Retries    int
	// Build configures every graph builder.
	Build []graph.Option
	// Engine configures every engine.
	Engine []stategraph.Option
}

// Catalog holds one engine per graph. It implements ports.Catalog.
type Catalog struct {
	engines map[string]*stategraph.Engine
	names   []string
}

// NewCatalog builds every graph Deps allows.
func NewCatalog(deps Deps) (*Catalog, error) {
	graphs := []func() (*graph.Graph, error){
		func() (*graph.Graph, error) { return Portfolio(deps.Rates, deps.Build...) },
		func() (*graph.Graph, error) { return Currency(deps.Rates, deps.Build...) },
	}
	if deps.Quotes != nil {
		graphs = append(graphs, func() (*graph.Graph, error) { return StockQuote(deps.Quotes, deps.Build...) })
	}
	if deps.Generators != nil && deps.Quotes != nil {
		tools, err := StockTools(deps.Quotes)
		if err != nil {
			return nil, err
		}
		gen, err := deps.Generators(tools.Tools())
		if err != nil {
			return nil, fmt.Errorf("create generator: %w", err)
		}
		plain, err := deps.Generators(nil)
		if err != nil {
			return nil, fmt.Errorf("create generator: %w", err)
		}
		graphs = append(graphs,
			func() (*graph.Graph, error) { return Chat(plain, deps.Retries) },
			func() (*graph.Graph, error) { return ToolChat(gen, tools, deps.Retries) },
		)
	}

	c := &Catalog{engines: make(map[string]*stategraph.Engine, len(graphs))}
	for _, build := range graphs {
		g, err := build()
		if err != nil {
			return nil, err
		}
		eng, err := stategraph.New(g, deps.Engine...)
		if err != nil {
			return nil, err
		}
		c.engines[g.Name()] = eng
		c.names = append(c.names, g.Name())
	}
	slices.Sort(c.names)
	return c, nil
}

// Names implements ports.Catalog.
func (c *Catalog) Names() []string {
	return slices.Clone(c.names)
}

// Engine returns the engine of a graph.
func (c *Catalog) Engine(name string) (*stategraph.Engine, bool) {
	eng, ok := c.engines[name]
	return eng, ok
}

// Runner implements ports.Catalog.
func (c *Catalog) Runner(name string) (ports.Runner, bool) {
	eng, ok := c.engines[name]
	if !ok {
		return nil, false
	}
	return eng, true
}
