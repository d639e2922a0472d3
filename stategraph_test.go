package stategraph_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stategraph"
	"github.com/aretw0/stategraph/pkg/agent"
	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
	"github.com/aretw0/stategraph/pkg/registry"
)

func portfolioSchema() *domain.Schema {
	return domain.MustSchema(
		domain.Number("amount_usd", 0),
		domain.Number("total_usd", 0),
		domain.Number("tax_usd", 0),
		domain.Number("total_inr", 0),
		domain.Number("total_eur", 0),
		domain.Enum("target_currency", "INR", "INR", "EUR"),
	)
}

func calcTotal(_ context.Context, s domain.State) (domain.Partial, error) {
	amount, err := s.Number("amount_usd")
	if err != nil {
		return nil, err
	}
	return domain.Partial{"total_usd": amount * 1.08}, nil
}

func calcTax(_ context.Context, s domain.State) (domain.Partial, error) {
	total, err := s.Number("total_usd")
	if err != nil {
		return nil, err
	}
	return domain.Partial{"tax_usd": total * 0.6}, nil
}

func convertINR(_ context.Context, s domain.State) (domain.Partial, error) {
	total, err := s.Number("total_usd")
	if err != nil {
		return nil, err
	}
	return domain.Partial{"total_inr": total * 85}, nil
}

func convertEUR(_ context.Context, s domain.State) (domain.Partial, error) {
	total, err := s.Number("total_usd")
	if err != nil {
		return nil, err
	}
	return domain.Partial{"total_eur": total * 0.89}, nil
}

func mustCompile(t *testing.T, b *graph.Builder) *graph.Graph {
	t.Helper()
	g, err := b.Compile()
	require.NoError(t, err)
	return g
}

func mustEngine(t *testing.T, g *graph.Graph, opts ...stategraph.Option) *stategraph.Engine {
	t.Helper()
	eng, err := stategraph.New(g, opts...)
	require.NoError(t, err)
	return eng
}

func linearPortfolio(t *testing.T) *graph.Graph {
	b := graph.New(portfolioSchema(), graph.WithName("portfolio"))
	require.NoError(t, b.AddNode("calc_total", calcTotal))
	require.NoError(t, b.AddNode("calculate_tax", calcTax))
	require.NoError(t, b.AddNode("convert_to_inr", convertINR))
	require.NoError(t, b.AddEdge(domain.Start, "calc_total"))
	require.NoError(t, b.AddEdge("calc_total", "calculate_tax"))
	require.NoError(t, b.AddEdge("calculate_tax", "convert_to_inr"))
	require.NoError(t, b.AddEdge("convert_to_inr", domain.End))
	return mustCompile(t, b)
}

func currencyGraph(t *testing.T) *graph.Graph {
	b := graph.New(portfolioSchema(), graph.WithName("currency"))
	require.NoError(t, b.AddNode("calc_total", calcTotal))
	require.NoError(t, b.AddNode("convert_to_inr", convertINR))
	require.NoError(t, b.AddNode("convert_to_eur", convertEUR))
	require.NoError(t, b.AddEdge(domain.Start, "calc_total"))
	require.NoError(t, b.AddConditionalEdge("calc_total", graph.EnumBranch("target_currency"), map[string]string{
		"INR": "convert_to_inr",
		"EUR": "convert_to_eur",
	}))
	require.NoError(t, b.AddEdge("convert_to_inr", domain.End))
	require.NoError(t, b.AddEdge("convert_to_eur", domain.End))
	return mustCompile(t, b)
}

func number(t *testing.T, s domain.State, name string) float64 {
	t.Helper()
	v, err := s.Number(name)
	require.NoError(t, err)
	return v
}

func TestEngine_LinearGraph(t *testing.T) {
	eng := mustEngine(t, linearPortfolio(t))

	res, err := eng.Run(context.Background(), map[string]any{"amount_usd": 1000})
	require.NoError(t, err)
	require.True(t, res.Done())

	assert.Equal(t, []string{"calc_total", "calculate_tax", "convert_to_inr"}, res.Path)
	assert.Equal(t, 3, res.Steps)
	assert.InDelta(t, 1000, number(t, res.State, "amount_usd"), 1e-9)
	assert.InDelta(t, 1080, number(t, res.State, "total_usd"), 1e-9)
	assert.InDelta(t, 648, number(t, res.State, "tax_usd"), 1e-9)
	assert.InDelta(t, 91800, number(t, res.State, "total_inr"), 1e-9)
	assert.Equal(t, []domain.StatusChange{
		{From: domain.StatusRunning, To: domain.StatusDone, Node: domain.End, Step: 3},
	}, res.Transitions)
	assert.NotEmpty(t, res.RunID)
}

func TestEngine_ConditionalRouting(t *testing.T) {
	eng := mustEngine(t, currencyGraph(t))

	inr, err := eng.Run(context.Background(), map[string]any{"amount_usd": 1000, "target_currency": "INR"})
	require.NoError(t, err)
	assert.True(t, inr.Visited("convert_to_inr"))
	assert.False(t, inr.Visited("convert_to_eur"))
	assert.InDelta(t, 91800, number(t, inr.State, "total_inr"), 1e-9)
	assert.Zero(t, number(t, inr.State, "total_eur"))

	eur, err := eng.Run(context.Background(), map[string]any{"amount_usd": 1000, "target_currency": "EUR"})
	require.NoError(t, err)
	assert.True(t, eur.Visited("convert_to_eur"))
	assert.False(t, eur.Visited("convert_to_inr"))
	assert.InDelta(t, 961.2, number(t, eur.State, "total_eur"), 1e-9)
	assert.Zero(t, number(t, eur.State, "total_inr"))
}

func TestEngine_FreshStatePerRun(t *testing.T) {
	eng := mustEngine(t, currencyGraph(t))

	_, err := eng.Run(context.Background(), map[string]any{"amount_usd": 1000, "target_currency": "EUR"})
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), map[string]any{"amount_usd": 10})
	require.NoError(t, err)
	assert.Zero(t, number(t, res.State, "total_eur"), "fields from a previous run must not leak")
	assert.InDelta(t, 10.8, number(t, res.State, "total_usd"), 1e-9)
}

func TestEngine_InvalidInitialState(t *testing.T) {
	eng := mustEngine(t, linearPortfolio(t))

	res, err := eng.Run(context.Background(), map[string]any{"unknown": 1})
	var target *domain.UndeclaredFieldError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Zero(t, res.Steps)

	_, err = eng.Run(context.Background(), map[string]any{"target_currency": "GBP"})
	var shape *domain.MergeShapeMismatchError
	assert.ErrorAs(t, err, &shape)
}

func TestEngine_ToolLoop(t *testing.T) {
	call := domain.ToolCall{ID: "call-1", Name: "get_stock_price", Args: map[string]any{"symbol": "META"}}
	gen := agent.NewScriptedGenerator(
		domain.AssistantMessage("", call),
		domain.AssistantMessage("META is trading at 200.3"),
	)

	var dispatched int
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register("get_stock_price", func(_ context.Context, args map[string]any) (any, error) {
		dispatched++
		assert.Equal(t, "META", args["symbol"])
		return 200.3, nil
	}))

	g, err := agent.NewToolLoop(gen, reg)
	require.NoError(t, err)
	eng := mustEngine(t, g)

	initial := []domain.Message{domain.UserMessage("What is the price of META?")}
	res, err := eng.Run(context.Background(), map[string]any{agent.FieldMessages: initial})
	require.NoError(t, err)
	require.True(t, res.Done())

	assert.Equal(t, 2, gen.Calls())
	assert.Equal(t, 1, dispatched)

	msgs, err := res.State.Messages(agent.FieldMessages)
	require.NoError(t, err)
	require.Len(t, msgs, len(initial)+3)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.True(t, msgs[1].HasToolCalls())
	assert.Equal(t, domain.RoleTool, msgs[2].Role)
	assert.Equal(t, "call-1", msgs[2].ToolCallID)
	assert.Equal(t, "200.3", msgs[2].Content)
	assert.Equal(t, "META is trading at 200.3", msgs[3].Content)

	// The second generator call sees the tool result.
	assert.Len(t, gen.Seen(1), 3)

	assert.Equal(t, []string{agent.NodeChat, agent.NodeTools, agent.NodeChat}, res.Path)
	assert.Equal(t, []domain.StatusChange{
		{From: domain.StatusRunning, To: domain.StatusAwaitingTools, Node: agent.NodeTools, Step: 1},
		{From: domain.StatusAwaitingTools, To: domain.StatusRunning, Node: agent.NodeChat, Step: 2},
		{From: domain.StatusRunning, To: domain.StatusDone, Node: domain.End, Step: 3},
	}, res.Transitions)
}

func TestEngine_UnknownBranchLabel(t *testing.T) {
	b := graph.New(portfolioSchema())
	require.NoError(t, b.AddNode("a", calcTotal))
	require.NoError(t, b.AddEdge(domain.Start, "a"))
	require.NoError(t, b.AddConditionalEdge("a", graph.NewBranch([]string{"ok"}, func(context.Context, domain.State) (string, error) {
		return "surprise", nil
	}), map[string]string{"ok": domain.End}))
	eng := mustEngine(t, mustCompile(t, b))

	res, err := eng.Run(context.Background(), map[string]any{"amount_usd": 1})
	var target *domain.UnknownBranchLabelError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "surprise", target.Label)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, err, res.Err)
	// The state merged before the failure is kept.
	assert.InDelta(t, 1.08, number(t, res.State, "total_usd"), 1e-9)
}

func TestEngine_NodeFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		fn    graph.NodeFunc
		check func(t *testing.T, err error)
	}{
		{
			name: "error",
			fn:   func(context.Context, domain.State) (domain.Partial, error) { return nil, boom },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, boom)
			},
		},
		{
			name: "panic",
			fn:   func(context.Context, domain.State) (domain.Partial, error) { panic("kaboom") },
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "kaboom")
			},
		},
		{
			name: "bad partial shape",
			fn: func(context.Context, domain.State) (domain.Partial, error) {
				return domain.Partial{"total_usd": "lots"}, nil
			},
			check: func(t *testing.T, err error) {
				var target *domain.MergeShapeMismatchError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "total_usd", target.Field)
			},
		},
		{
			name: "undeclared output",
			fn: func(context.Context, domain.State) (domain.Partial, error) {
				return domain.Partial{"bogus": 1}, nil
			},
			check: func(t *testing.T, err error) {
				var target *domain.UndeclaredFieldError
				require.ErrorAs(t, err, &target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graph.New(portfolioSchema())
			require.NoError(t, b.AddNode("calc_total", calcTotal))
			require.NoError(t, b.AddNode("faulty", tt.fn))
			require.NoError(t, b.AddEdge(domain.Start, "calc_total"))
			require.NoError(t, b.AddEdge("calc_total", "faulty"))
			require.NoError(t, b.AddEdge("faulty", domain.End))
			eng := mustEngine(t, mustCompile(t, b))

			res, err := eng.Run(context.Background(), map[string]any{"amount_usd": 1000})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrRun)
			assert.Equal(t, domain.StatusFailed, res.Status)
			assert.Equal(t, err, res.Err)
			assert.Equal(t, []string{"calc_total", "faulty"}, res.Path)
			assert.InDelta(t, 1080, number(t, res.State, "total_usd"), 1e-9)
			tt.check(t, err)

			last := res.Transitions[len(res.Transitions)-1]
			assert.Equal(t, domain.StatusFailed, last.To)
			assert.Equal(t, "faulty", last.Node)
		})
	}
}

func loopGraph(t *testing.T) *graph.Graph {
	b := graph.New(portfolioSchema())
	require.NoError(t, b.AddNode("spin", func(_ context.Context, s domain.State) (domain.Partial, error) {
		n, _ := s.Number("total_usd")
		return domain.Partial{"total_usd": n + 1}, nil
	}))
	require.NoError(t, b.AddEdge(domain.Start, "spin"))
	require.NoError(t, b.AddConditionalEdge("spin", graph.NewBranch([]string{"again", "stop"}, func(_ context.Context, s domain.State) (string, error) {
		n, _ := s.Number("total_usd")
		if n >= 1000 {
			return "stop", nil
		}
		return "again", nil
	}), map[string]string{"again": "spin", "stop": domain.End}))
	return mustCompile(t, b)
}

func TestEngine_CyclesAllowed(t *testing.T) {
	eng := mustEngine(t, loopGraph(t))
	res, err := eng.Run(context.Background(), map[string]any{"total_usd": 995})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Steps)
}

func TestEngine_MaxSteps(t *testing.T) {
	eng := mustEngine(t, loopGraph(t), stategraph.WithMaxSteps(10))

	res, err := eng.Run(context.Background(), nil)
	var target *domain.MaxStepsExceededError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, 10, target.Limit)
	assert.Equal(t, "spin", target.Node)
	assert.Equal(t, 10, res.Steps)
	assert.InDelta(t, 10, number(t, res.State, "total_usd"), 1e-9)
}

func TestEngine_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	b := graph.New(portfolioSchema())
	require.NoError(t, b.AddNode("calc_total", func(ctx context.Context, s domain.State) (domain.Partial, error) {
		cancel()
		return calcTotal(ctx, s)
	}))
	require.NoError(t, b.AddNode("calculate_tax", calcTax))
	require.NoError(t, b.AddEdge(domain.Start, "calc_total"))
	require.NoError(t, b.AddEdge("calc_total", "calculate_tax"))
	require.NoError(t, b.AddEdge("calculate_tax", domain.End))
	eng := mustEngine(t, mustCompile(t, b))

	res, err := eng.Run(ctx, map[string]any{"amount_usd": 1000})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, domain.ErrRun)
	assert.Equal(t, []string{"calc_total"}, res.Path, "the node in flight completes, the next never starts")
	assert.InDelta(t, 1080, number(t, res.State, "total_usd"), 1e-9)
}

func TestEngine_LifecycleHooks(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, s)
	}

	hooks := domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) { record("enter:" + e.Node) },
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) { record("leave:" + e.Node) },
		OnBranch:    func(_ context.Context, e *domain.BranchEvent) { record("branch:" + e.Label) },
		OnRunEnd:    func(_ context.Context, e *domain.RunEvent) { record("end:" + string(e.Status)) },
	}
	eng := mustEngine(t, currencyGraph(t),
		stategraph.WithLifecycleHooks(hooks),
		stategraph.WithRunIDGenerator(func() string { return "fixed" }),
	)

	res, err := eng.Run(context.Background(), map[string]any{"amount_usd": 1, "target_currency": "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", res.RunID)
	assert.Equal(t, []string{
		"enter:calc_total", "leave:calc_total", "branch:EUR",
		"enter:convert_to_eur", "leave:convert_to_eur", "end:done",
	}, events)
}

func TestEngine_Middleware(t *testing.T) {
	var order []string
	mw := func(tag string) graph.Middleware {
		return func(node domain.NodeInfo, next graph.NodeFunc) graph.NodeFunc {
			return func(ctx context.Context, s domain.State) (domain.Partial, error) {
				order = append(order, tag+":"+node.Name)
				return next(ctx, s)
			}
		}
	}
	eng := mustEngine(t, linearPortfolio(t), stategraph.WithMiddleware(mw("outer"), mw("inner")))

	_, err := eng.Run(context.Background(), map[string]any{"amount_usd": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"outer:calc_total", "inner:calc_total",
		"outer:calculate_tax", "inner:calculate_tax",
		"outer:convert_to_inr", "inner:convert_to_inr",
	}, order)
}

func TestEngine_ConcurrentRuns(t *testing.T) {
	eng := mustEngine(t, currencyGraph(t))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			currency := "INR"
			if i%2 == 1 {
				currency = "EUR"
			}
			res, err := eng.Run(context.Background(), map[string]any{"amount_usd": i, "target_currency": currency})
			if err != nil {
				errs <- err
				return
			}
			total, _ := res.State.Number("total_usd")
			if total != float64(i)*1.08 {
				errs <- errors.New("state leaked between runs")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNew_RequiresGraph(t *testing.T) {
	_, err := stategraph.New(nil)
	assert.Error(t, err)
}
