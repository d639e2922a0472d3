/*
Package stategraph is a graph-based computation executor for deterministic
pipelines and tool-using conversational agents.

A program is a graph of named nodes. Each node is a Go function that reads an
immutable State and returns only the fields it changes; the engine merges that
partial update by the per-field policy declared in the Schema (replace for
scalars, append for message sequences) and follows static or conditional edges
until the End marker.

# Concept

  - Schema and State: every field is declared with a kind and a default. Reading
    or writing an undeclared field is an error, never a silent nil.
  - Builder and Graph: nodes and edges are registered on a graph.Builder (forward
    references allowed) and checked once by Compile, which reports dangling
    references, ambiguous routing, incomplete branches and unreachable nodes.
    A compiled Graph is immutable and can be shared by concurrent runs.
  - Branches: conditional edges route by label. A branch declares its label set
    up front (graph.EnumBranch derives it from an enum field) so Compile can
    prove every label has a target.
  - Engine: Run builds a fresh State from the defaults and the caller's initial
    values and drives it to completion. Node errors, panics and merge errors end
    the run with a Failed result that carries the original cause.

# Usage

	schema := domain.MustSchema(
		domain.Number("amount_usd", 0),
		domain.Number("total_usd", 0),
	)

	b := graph.New(schema, graph.WithName("portfolio"))
	_ = b.AddNode("calc_total", func(ctx context.Context, s domain.State) (domain.Partial, error) {
		amount, err := s.Number("amount_usd")
		if err != nil {
			return nil, err
		}
		return domain.Partial{"total_usd": amount * 1.08}, nil
	})
	_ = b.AddEdge(domain.Start, "calc_total")
	_ = b.AddEdge("calc_total", domain.End)

	g, err := b.Compile()
	if err != nil {
		log.Fatal(err)
	}

	eng, _ := stategraph.New(g)
	res, err := eng.Run(ctx, map[string]any{"amount_usd": 1000})

The pkg/agent package assembles the chat/tool loop on top of these pieces.
*/
package stategraph
